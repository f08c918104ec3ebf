package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/search/domain/engine"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

type esEngine struct {
	es    *elasticsearch.Client
	index string
}

func NewEngine(cfg Config) (engine.Engine, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, err
	}
	index := cfg.Index
	if index == "" {
		index = "agents"
	}
	return &esEngine{es: es, index: index}, nil
}

func (e *esEngine) Name() string { return "elasticsearch" }

func (e *esEngine) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseErr(res)
}

func (e *esEngine) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(IndexMapping())
	if err != nil {
		return err
	}
	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(body))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseErr(res)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Suggest map[string][]struct {
		Options []struct {
			Text string `json:"text"`
		} `json:"options"`
	} `json:"suggest"`
}

func (e *esEngine) do(ctx context.Context, body M) (*searchResponse, error) {
	r, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(r),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := responseErr(res); err != nil {
		return nil, err
	}
	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *esEngine) Search(ctx context.Context, q engine.Query) (*engine.Hits, error) {
	out, err := e.do(ctx, SearchBody(q))
	if err != nil {
		return nil, err
	}
	items, err := decodeHits(out)
	if err != nil {
		return nil, err
	}
	return &engine.Hits{Items: items, Total: out.Hits.Total.Value}, nil
}

func (e *esEngine) Suggest(ctx context.Context, prefix, lang string, size int) ([]string, error) {
	out, err := e.do(ctx, SuggestBody(prefix, lang, size))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, size)
	for _, s := range out.Suggest[suggestName] {
		for _, o := range s.Options {
			names = append(names, o.Text)
		}
	}
	return names, nil
}

func (e *esEngine) Popular(ctx context.Context, limit int, since *time.Time) ([]entity.CatalogAgent, error) {
	out, err := e.do(ctx, PopularBody(limit, since))
	if err != nil {
		return nil, err
	}
	return decodeHits(out)
}

func (e *esEngine) Index(ctx context.Context, agent *entity.CatalogAgent) error {
	body, err := encode(Document(agent))
	if err != nil {
		return err
	}
	res, err := e.es.Index(e.index, body,
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(agent.ID))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseErr(res)
}

func (e *esEngine) Delete(ctx context.Context, id string) error {
	res, err := e.es.Delete(e.index, id, e.es.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseErr(res)
}

func decodeHits(out *searchResponse) ([]entity.CatalogAgent, error) {
	items := make([]entity.CatalogAgent, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		var a entity.CatalogAgent
		if err := json.Unmarshal(h.Source, &a); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func encode(body M) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	return &buf, nil
}

func responseErr(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return fmt.Errorf("elasticsearch %s: %s", res.Status(), string(b))
}
