package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bureaucracy-oracle/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCluster(t *testing.T, indices map[string]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			w.Write([]byte(`{"name":"n","cluster_name":"c","version":{"number":"8.11.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}
		if indices[r.URL.Path[1:]] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewElasticsearch_RequiresAddresses(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}

func TestElasticsearchClient_PingAndIndex(t *testing.T) {
	srv := fakeCluster(t, map[string]bool{"regulations": true})

	client, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses: []string{srv.URL},
		Index:     "regulations",
	})
	require.NoError(t, err)

	require.NoError(t, client.Ping(context.Background()))

	exists, err := client.IndexExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	client.Index = "missing"
	exists, err = client.IndexExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}
