package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siherrmann/regularrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Run("Known providers", func(t *testing.T) {
		for _, name := range []string{"openai", "ollama", "custom"} {
			provider, err := NewProvider(Config{Provider: name, Model: "m"})
			assert.NoError(t, err)
			assert.NotNil(t, provider)
		}
	})

	t.Run("Missing provider", func(t *testing.T) {
		_, err := NewProvider(Config{})
		assert.Error(t, err)
	})

	t.Run("Unknown provider", func(t *testing.T) {
		_, err := NewProvider(Config{Provider: "carrier-pigeon"})
		assert.Error(t, err)
	})
}

func TestChatCompletion(t *testing.T) {
	t.Run("Parses content and usage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req chatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "hello", req.Messages[0].Content)

			w.Write([]byte(`{
				"id": "chatcmpl-1",
				"choices": [{"message": {"content": "hi there"}}],
				"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
			}`))
		}))
		defer server.Close()

		provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL, APIKey: "test-key"})
		resp, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "hello"}}, ChatOptions{})
		require.NoError(t, err)
		assert.Equal(t, "chatcmpl-1", resp.ID)
		assert.Equal(t, "hi there", resp.Content)
		require.NotNil(t, resp.Usage)
		assert.Equal(t, 5, resp.Usage.TotalTokens)
	})

	t.Run("Empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
		_, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "hello"}}, ChatOptions{})
		assert.Error(t, err)
	})
}

func TestCreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"embed me"}, req.Input)

		w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3], "index": 0}]}`))
	}))
	defer server.Close()

	provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
	embedding, err := provider.CreateEmbedding(context.Background(), "embed me")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestDoPostRetries(t *testing.T) {
	t.Run("Retries on 500 with identical body", func(t *testing.T) {
		var bodies []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(body))
			if len(bodies) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"id": "ok", "choices": [{"message": {"content": "recovered"}}]}`))
		}))
		defer server.Close()

		provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
		resp, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "retry me"}}, ChatOptions{})
		require.NoError(t, err)
		assert.Equal(t, "recovered", resp.Content)

		require.Len(t, bodies, 3)
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[1], bodies[2])
	})

	t.Run("Gives up after max retries", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
		_, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "x"}}, ChatOptions{})
		assert.Error(t, err)
		assert.Equal(t, 1+maxRetries, calls)
	})

	t.Run("No retry on client error", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
		_, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "x"}}, ChatOptions{})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retries on 408 and 429", func(t *testing.T) {
		for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests} {
			var calls int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(code)
					return
				}
				w.Write([]byte(`{"id": "ok", "choices": [{"message": {"content": "fine"}}]}`))
			}))

			provider := NewOpenAICompat(Config{Model: "test-model", BaseURL: server.URL})
			resp, err := provider.ChatCompletion(context.Background(), []model.Message{{Role: "user", Content: "x"}}, ChatOptions{})
			require.NoError(t, err)
			assert.Equal(t, "fine", resp.Content)
			assert.Equal(t, 2, calls)

			server.Close()
		}
	})
}

func TestOllamaCreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Write([]byte(`{"embeddings": [[0.5, 0.25]]}`))
	}))
	defer server.Close()

	provider := NewOllama(Config{Model: "test-model", BaseURL: server.URL})
	embedding, err := provider.CreateEmbedding(context.Background(), "embed me")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, embedding)
}
