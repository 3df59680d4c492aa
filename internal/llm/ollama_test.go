package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaCompleteDecodesResponseAndUsage(t *testing.T) {
	var gotReq ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.2",
			Response:        "the answer",
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       7,
		})
	}))
	defer srv.Close()

	temp := float32(0.3)
	maxTokens := 1000
	client := NewOllama(srv.URL)
	resp, err := client.Complete(context.Background(), Request{
		Prompt:      "context\n\nQuestion: q",
		Model:       "llama3.2",
		System:      "answer only from context",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Content)
	assert.Equal(t, "llama3.2", resp.Model)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 7, TotalTokens: 19}, resp.Usage)

	assert.False(t, gotReq.Stream)
	assert.Equal(t, "answer only from context", gotReq.System)
	require.NotNil(t, gotReq.Options)
	assert.InDelta(t, 0.3, float64(gotReq.Options.Temperature), 1e-6)
	assert.Equal(t, 1000, gotReq.Options.NumPredict)
}

func TestOllamaCompleteNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).Complete(context.Background(), Request{Prompt: "q", Model: "m"})
	require.Error(t, err)
}

func TestOllamaStreamYieldsChunksAndExactlyOneTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ollamaResponse{Model: "m", Response: "the "})
		enc.Encode(ollamaResponse{Model: "m", Response: "answer"})
		enc.Encode(ollamaResponse{Model: "m", Done: true, PromptEvalCount: 4, EvalCount: 2})
	}))
	defer srv.Close()

	ch, err := NewOllama(srv.URL).Stream(context.Background(), Request{Prompt: "q", Model: "m"})
	require.NoError(t, err)

	var content string
	var terminals int
	var usage Usage
	for chunk := range ch {
		content += chunk.Content
		if chunk.Done {
			terminals++
			usage = chunk.Usage
		}
	}
	assert.Equal(t, "the answer", content)
	assert.Equal(t, 1, terminals)
	assert.Equal(t, Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}, usage)
}

func TestOllamaStreamCancellationClosesChannel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(ollamaResponse{Model: "m", Response: "partial"})
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewOllama(srv.URL).Stream(ctx, Request{Prompt: "q", Model: "m"})
	require.NoError(t, err)

	<-ch // first chunk arrives
	cancel()

	// The goroutine observes cancellation and closes the channel; no
	// terminal chunk is required on the cancel path.
	for range ch {
	}
}

func TestFactorySelectsOllamaAndRejectsUnknown(t *testing.T) {
	c, err := New("ollama", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.ProviderName())

	c, err = New("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.ProviderName())

	_, err = New("openai", "", "")
	require.Error(t, err)

	_, err = New("something-else", "", "")
	require.Error(t, err)
}
