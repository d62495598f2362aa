// Package openai implements the llm capability contracts on top of the
// OpenAI API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/amanshresthaa/quizd/llm"
)

// Options contains configuration options for the OpenAI client.
type Options struct {
	// Model is the chat model used for generation and judging.
	Model string
	// EmbeddingModel is the model used for text embeddings.
	EmbeddingModel openai.EmbeddingModel
	// RequestsPerSecond caps the request rate across all capabilities.
	RequestsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Model:             openai.GPT4o,
	EmbeddingModel:    openai.SmallEmbedding3,
	RequestsPerSecond: 5,
	Burst:             5,
}

// Client implements llm.Embedder, llm.Generator and llm.Judge using the
// OpenAI API. A shared rate limiter covers all three capabilities.
type Client struct {
	client  *openai.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a new Client.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		client:  openai.NewClient(apiKey),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		opts:    opts,
	}
}

var (
	_ llm.Embedder  = (*Client)(nil)
	_ llm.Generator = (*Client)(nil)
	_ llm.Judge     = (*Client)(nil)
)

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", llm.ErrEmbeddingUnavailable)
	}

	return resp.Data[0].Embedding, nil
}
