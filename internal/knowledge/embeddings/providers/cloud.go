package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// Cloud embeds text through a token-authenticated, batched HTTP API:
// one POST per batch carrying {model, input: [...]} and answered with
// {embeddings: [[...], ...]}, plus a bearer Authorization header and a
// client-side token-bucket limiter, so a large ingest doesn't trip the
// hosted API's rate limits in the first place.
type Cloud struct {
	endpoint   string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
}

func NewCloud(endpoint, apiKey, model string, dimensions int) *Cloud {
	return &Cloud{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
		// 5 requests/sec with a small burst, conservative default for
		// a hosted embedding API.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (c *Cloud) ProviderName() string { return "cloud" }
func (c *Cloud) ModelName() string    { return c.model }
func (c *Cloud) Dimensions() int      { return c.dimensions }

type cloudBatchRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type cloudBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Cloud) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errs.NewError(errs.KindCancelled, err)
		}
		return nil, errs.NewError(errs.KindRateLimited, err)
	}

	body, err := json.Marshal(cloudBatchRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.NewError(errs.KindProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errs.Errorf(errs.KindAuthFailed, "cloud embedding auth failed: %d", resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, errs.Errorf(errs.KindRateLimited, "cloud embedding rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Errorf(errs.KindProviderUnreachable, "cloud embedding returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed cloudBatchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errs.Errorf(errs.KindProviderUnreachable, "malformed-response: %v", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, errs.Errorf(errs.KindProviderUnreachable,
			"cloud embedding returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}
	for _, v := range parsed.Embeddings {
		if c.dimensions > 0 && len(v) != c.dimensions {
			return nil, errs.Errorf(errs.KindDimMismatch,
				"cloud embedding returned %d dims, expected %d", len(v), c.dimensions)
		}
	}

	return parsed.Embeddings, nil
}
