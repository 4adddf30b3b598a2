package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrMissingIndex = errors.New("index name is required")

// ElasticsearchBackend searches a local index of regulation documents.
// Documents carry title, url, content and a domain keyword.
type ElasticsearchBackend struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchBackend(client *elasticsearch.Client, index string) *ElasticsearchBackend {
	return &ElasticsearchBackend{client: client, index: index}
}

func (e *ElasticsearchBackend) Name() string { return "elasticsearch" }

func buildRegulationQuery(q Query) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q.Text,
					"fields": []string{"title^2", "content"},
					"type":   "best_fields",
				},
			},
		},
	}
	if len(q.IncludeDomains) > 0 {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{
				"terms": map[string]interface{}{"domain": q.IncludeDomains},
			},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

func (e *ElasticsearchBackend) Search(ctx context.Context, q Query) (*Response, error) {
	if e.index == "" {
		return nil, ErrMissingIndex
	}

	body, err := json.Marshal(buildRegulationQuery(q))
	if err != nil {
		return nil, err
	}
	size := q.MaxResults
	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Title   string `json:"title"`
					URL     string `json:"url"`
					Content string `json:"content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode response: %w", err)
	}

	out := &Response{Hits: make([]Hit, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, Hit{
			Title:   h.Source.Title,
			URL:     h.Source.URL,
			Content: h.Source.Content,
			Score:   h.Score,
		})
	}
	if len(out.Hits) > 0 {
		out.Answer = firstSentence(out.Hits[0].Content)
	}
	return out, nil
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
