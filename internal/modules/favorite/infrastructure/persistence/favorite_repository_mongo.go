package persistence

import (
	"context"

	"AgentPedia/internal/modules/favorite/domain/entity"
	"AgentPedia/internal/modules/favorite/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "favorites"

type favoriteRepositoryImpl struct {
	coll *mongo.Collection
}

func NewFavoriteRepository(db *mongo.Database) repository.FavoriteRepository {
	return &favoriteRepositoryImpl{coll: db.Collection(CollectionName)}
}

func (r *favoriteRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "agent_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "agent_id", Value: 1}}},
	})
	return err
}

func (r *favoriteRepositoryImpl) Add(ctx context.Context, fav *entity.Favorite) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": fav.UserID, "agent_id": fav.AgentID},
		bson.M{"$setOnInsert": fav},
		options.Update().SetUpsert(true),
	)
	// 并发 upsert 撞唯一索引，视为已收藏
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *favoriteRepositoryImpl) Remove(ctx context.Context, userID int64, agentID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "agent_id": agentID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *favoriteRepositoryImpl) List(ctx context.Context, userID int64, offset, limit int64) ([]entity.Favorite, int64, error) {
	filter := bson.M{"user_id": userID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]entity.Favorite, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *favoriteRepositoryImpl) Exists(ctx context.Context, userID int64, agentID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "agent_id": agentID}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *favoriteRepositoryImpl) ExistsMany(ctx context.Context, userID int64, agentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx,
		bson.M{"user_id": userID, "agent_id": bson.M{"$in": agentIDs}},
		options.Find().SetProjection(bson.M{"agent_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			AgentID string `bson:"agent_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.AgentID] = true
	}
	return out, cur.Err()
}
