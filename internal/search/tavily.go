package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTavilyURL = "https://api.tavily.com"

// TavilyBackend calls the Tavily search API.
type TavilyBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewTavilyBackend(apiKey, baseURL string, timeout time.Duration) *TavilyBackend {
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TavilyBackend{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *TavilyBackend) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
}

func (t *TavilyBackend) Search(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	includeDomains := q.IncludeDomains
	if includeDomains == nil {
		includeDomains = []string{}
	}
	payload, err := json.Marshal(tavilyRequest{
		APIKey:         t.apiKey,
		Query:          q.Text,
		SearchDepth:    q.Depth.Mode(),
		MaxResults:     q.MaxResults,
		IncludeAnswer:  q.IncludeAnswer,
		IncludeDomains: includeDomains,
		ExcludeDomains: []string{},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var body struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	out := &Response{Answer: body.Answer, Hits: make([]Hit, 0, len(body.Results))}
	for _, r := range body.Results {
		out.Hits = append(out.Hits, Hit{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return out, nil
}
