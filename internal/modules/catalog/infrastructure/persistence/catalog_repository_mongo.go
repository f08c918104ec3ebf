package persistence

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "agents"

type catalogRepositoryImpl struct {
	coll *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) repository.CatalogRepository {
	return &catalogRepositoryImpl{coll: db.Collection(CollectionName)}
}

func (r *catalogRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "metrics.popularity_score", Value: -1}}},
	})
	return err
}

func (r *catalogRepositoryImpl) Create(ctx context.Context, agent *entity.CatalogAgent) error {
	_, err := r.coll.InsertOne(ctx, agent)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateSlug
	}
	return err
}

func (r *catalogRepositoryImpl) GetByID(ctx context.Context, id string) (*entity.CatalogAgent, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *catalogRepositoryImpl) GetBySlug(ctx context.Context, slug string) (*entity.CatalogAgent, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *catalogRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*entity.CatalogAgent, error) {
	var agent entity.CatalogAgent
	err := r.coll.FindOne(ctx, filter).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *catalogRepositoryImpl) Update(ctx context.Context, id string, fields map[string]interface{}) (*entity.CatalogAgent, error) {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return nil, repository.ErrDuplicateSlug
	}
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *catalogRepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *catalogRepositoryImpl) Find(ctx context.Context, q repository.AgentQuery) ([]entity.CatalogAgent, int64, error) {
	filter := BuildFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(BuildSort(q))
	if q.Offset > 0 {
		opts.SetSkip(q.Offset)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	items := make([]entity.CatalogAgent, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *catalogRepositoryImpl) NamesWithPrefix(ctx context.Context, prefix, lang string, limit int) ([]string, error) {
	field := "name." + entity.NormalizeLanguage(lang)
	values, err := r.coll.Distinct(ctx, field, PrefixFilter(field, prefix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (r *catalogRepositoryImpl) Related(ctx context.Context, agent *entity.CatalogAgent, limit int) ([]entity.CatalogAgent, error) {
	filter := RelatedFilter(agent)
	if filter == nil {
		return []entity.CatalogAgent{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "metrics.popularity_score", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	items := make([]entity.CatalogAgent, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *catalogRepositoryImpl) Iterate(ctx context.Context, fn func(agent *entity.CatalogAgent) error) error {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var agent entity.CatalogAgent
		if err := cur.Decode(&agent); err != nil {
			return err
		}
		if err := fn(&agent); err != nil {
			return err
		}
	}
	return cur.Err()
}

var stackFields = []string{
	"technical_stack.base_model",
	"technical_stack.frameworks",
	"technical_stack.programming_languages",
	"technical_stack.deployment",
}

// BuildFilter 文本条件与过滤条件之间为 AND
func BuildFilter(q repository.AgentQuery) bson.M {
	and := make([]bson.M, 0, 5)

	if q.Text != "" {
		lang := entity.NormalizeLanguage(q.Language)
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q.Text), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name." + lang: re},
			bson.M{"description.short." + lang: re},
			bson.M{"description.detailed." + lang: re},
			bson.M{"tags": re},
		}})
	}
	if q.Status != "" {
		and = append(and, bson.M{"status": q.Status})
	}
	if len(q.Tags) > 0 {
		and = append(and, bson.M{"tags": bson.M{"$in": q.Tags}})
	}
	if len(q.TechnicalStack) > 0 {
		or := make(bson.A, 0, len(stackFields))
		for _, f := range stackFields {
			or = append(or, bson.M{f: bson.M{"$in": q.TechnicalStack}})
		}
		and = append(and, bson.M{"$or": or})
	}
	if q.CreatedAfter != nil {
		and = append(and, bson.M{"created_at": bson.M{"$gte": *q.CreatedAfter}})
	}

	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	default:
		clauses := make(bson.A, 0, len(and))
		for _, c := range and {
			clauses = append(clauses, c)
		}
		return bson.M{"$and": clauses}
	}
}

// BuildSort 末尾追加 _id 保证分页稳定
func BuildSort(q repository.AgentQuery) bson.D {
	order := 1
	if q.SortDesc {
		order = -1
	}
	var field string
	switch q.SortBy {
	case repository.SortPopularity:
		field = "metrics.popularity_score"
	case repository.SortCreatedAt:
		field = "created_at"
	case repository.SortUpdatedAt:
		field = "updated_at"
	default:
		field = "name." + entity.NormalizeLanguage(q.Language)
	}
	return bson.D{{Key: field, Value: order}, {Key: "_id", Value: 1}}
}

// PrefixFilter 大小写不敏感的前缀匹配
func PrefixFilter(field, prefix string) bson.M {
	return bson.M{field: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix), Options: "i"}}
}

// RelatedFilter 共享标签或技术栈，排除自身；无可比较字段时返回 nil
func RelatedFilter(agent *entity.CatalogAgent) bson.M {
	or := bson.A{}
	if len(agent.Tags) > 0 {
		or = append(or, bson.M{"tags": bson.M{"$in": agent.Tags}})
	}
	if kw := agent.TechnicalStack.Keywords(); len(kw) > 0 {
		for _, f := range stackFields {
			or = append(or, bson.M{f: bson.M{"$in": kw}})
		}
	}
	if len(or) == 0 {
		return nil
	}
	return bson.M{"_id": bson.M{"$ne": agent.ID}, "$or": or}
}
