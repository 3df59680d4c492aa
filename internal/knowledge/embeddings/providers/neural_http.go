package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// NeuralHTTP embeds text by POSTing to a local (or remote) embedding
// server, one request per text. Transient failures retry with
// exponential backoff (initial 100ms, factor 2, max 3 attempts); the
// per-request timeout is 30s.
type NeuralHTTP struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

func NewNeuralHTTP(endpoint, model string, dimensions int) *NeuralHTTP {
	return &NeuralHTTP{
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *NeuralHTTP) ProviderName() string { return "neural-http" }
func (n *NeuralHTTP) ModelName() string    { return n.model }
func (n *NeuralHTTP) Dimensions() int      { return n.dimensions }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (n *NeuralHTTP) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := n.embedWithRetry(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (n *NeuralHTTP) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	backoff := 100 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errs.NewError(errs.KindCancelled, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vec, transient, err := n.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !transient {
			return nil, err
		}
	}

	return nil, errs.NewError(errs.KindProviderUnreachable, lastErr)
}

// embedOnce performs a single attempt. The bool return reports whether
// the error is transient (worth retrying) as opposed to fatal
// (dim-mismatch, malformed response).
func (n *NeuralHTTP) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	body, err := json.Marshal(embedRequest{Model: n.model, Prompt: text})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("embedding server returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("embedding server returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, errs.Errorf(errs.KindProviderUnreachable, "malformed-response: %v", err)
	}

	if n.dimensions > 0 && len(parsed.Embedding) != n.dimensions {
		return nil, false, errs.Errorf(errs.KindDimMismatch,
			"embedding server returned %d dims, expected %d", len(parsed.Embedding), n.dimensions)
	}

	return parsed.Embedding, false, nil
}
