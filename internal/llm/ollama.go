package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Ollama drives a local Ollama server's /api/generate endpoint.
type Ollama struct {
	endpoint string
	client   *http.Client
}

// NewOllama builds an Ollama client against endpoint (e.g.
// "http://localhost:11434"), defaulting to the standard local address
// when endpoint is empty.
func NewOllama(endpoint string) *Ollama {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &Ollama{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 0}, // no hard timeout at this layer; callers bound it via ctx
	}
}

func (o *Ollama) ProviderName() string { return "ollama" }

type ollamaRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model              string `json:"model"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalCount          int    `json:"eval_count"`
}

func buildRequest(req Request, stream bool) ollamaRequest {
	var opts *options
	if req.Temperature != nil || req.MaxTokens != nil {
		opts = &options{}
		if req.Temperature != nil {
			opts.Temperature = *req.Temperature
		}
		if req.MaxTokens != nil {
			opts.NumPredict = *req.MaxTokens
		}
	}
	return ollamaRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  stream,
		Options: opts,
	}
}

// Complete issues a non-streaming completion request.
func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(buildRequest(req, false))
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decoding ollama response: %w", err)
	}

	return Response{
		Content: out.Response,
		Model:   out.Model,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

// Stream issues a streaming completion request, decoding Ollama's
// newline-delimited JSON objects into StreamChunks on a goroutine. The
// channel is closed after the terminal (Done=true) chunk, or
// immediately if ctx is cancelled first.
func (o *Ollama) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	body, err := json.Marshal(buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				return
			}

			sc := StreamChunk{
				Content: chunk.Response,
				Model:   chunk.Model,
				Done:    chunk.Done,
			}
			if chunk.Done {
				sc.Usage = Usage{
					PromptTokens:     chunk.PromptEvalCount,
					CompletionTokens: chunk.EvalCount,
					TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
				}
			}

			select {
			case out <- sc:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return out, nil
}
