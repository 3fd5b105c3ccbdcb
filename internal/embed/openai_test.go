package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbeddings_Success(t *testing.T) {
	var gotBody struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}},
				{"embedding": []float32{0.3, 0.4}},
			},
		})
	})

	vecs, err := c.Embeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
	assert.Equal(t, "text-embedding-ada-002", gotBody.Model)
	assert.Equal(t, []string{"first", "second"}, gotBody.Input)
}

func TestEmbeddings_EmptyInputSkipsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	vecs, err := c.Embeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.False(t, called)
}

func TestEmbeddings_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := c.Embeddings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbeddings_CountMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}}},
		})
	})

	_, err := c.Embeddings(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbeddings_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.Embeddings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbeddings_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, APIKey: "test-key"})
	require.NoError(t, err)
	_, err = c.Embeddings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
