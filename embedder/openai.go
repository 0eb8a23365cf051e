package embedder

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/raresift/searchcore/internal/vecmath"
	"github.com/raresift/searchcore/ratelimit"
)

// visionPrompt is the fixed instruction for describing a driving-footage
// frame. The description is what actually gets embedded, so it is steered
// toward the objects users search for.
const visionPrompt = `Describe this driving scene in detail. Focus on:
- vehicles: type, color, position (cars, trucks, buses, vans, motorcycles, bicycles)
- people: pedestrians, cyclists, their position relative to the road
- road infrastructure: traffic lights, signs, crosswalks, intersections, lane markings
- weather and lighting conditions
- any notable traffic situations (construction, accidents, congestion)
Be specific about what is clearly visible in the frame.`

// visionTokenEstimate sizes the rate-limit permit for a vision call before
// the image is sent; actual usage corrects it on release.
const visionTokenEstimate = 250

const defaultTimeout = 60 * time.Second

// Config wires a Client to the external service and its rate limiter.
type Config struct {
	APIKey  string
	BaseURL string // optional; empty means the provider default
	Timeout time.Duration

	VisionModel    ModelSpec // defaults to VisionGPT4oMini
	EmbeddingModel ModelSpec // defaults to TextEmbedding3Small

	// EstimateTokens approximates token counts for permit sizing.
	// Defaults to the len/4 heuristic.
	EstimateTokens func(string) int

	// Limiter gates every external call. Required.
	Limiter *ratelimit.Limiter
}

// Client encodes images and text through an OpenAI-compatible API, acquiring
// and releasing rate-limit permits around every external call.
type Client struct {
	api      *openai.Client
	vision   ModelSpec
	embed    ModelSpec
	estimate func(string) int
	limiter  *ratelimit.Limiter
}

var _ Encoder = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	vision := cfg.VisionModel
	if vision.Name == "" {
		vision = VisionGPT4oMini
	}
	embed := cfg.EmbeddingModel
	if embed.Name == "" {
		embed = TextEmbedding3Small
	}
	estimate := cfg.EstimateTokens
	if estimate == nil {
		estimate = EstimateTokens
	}

	return &Client{
		api:      openai.NewClientWithConfig(apiCfg),
		vision:   vision,
		embed:    embed,
		estimate: estimate,
		limiter:  cfg.Limiter,
	}, nil
}

func (c *Client) Model() string   { return c.embed.Name }
func (c *Client) Dimensions() int { return c.embed.Dims }

// RateLimitStatus exposes the limiter snapshot for observability endpoints.
func (c *Client) RateLimitStatus() ratelimit.Status {
	return c.limiter.Status()
}

// EncodeText applies traffic query enhancement, embeds the enhanced string,
// and returns a unit-length vector.
func (c *Client) EncodeText(ctx context.Context, query string) ([]float32, error) {
	enhanced := EnhanceTrafficQuery(query)
	return c.embedText(ctx, enhanced)
}

// EncodeImage describes the frame with the vision model, embeds the
// description, and returns a unit-length vector.
func (c *Client) EncodeImage(ctx context.Context, img Image) ([]float32, error) {
	_, vec, err := c.EncodeImageDescribed(ctx, img)
	return vec, err
}

// EncodeImageDescribed is EncodeImage plus the intermediate scene
// description, for callers that persist it alongside the embedding. The
// vision step must finish before the embedding step starts. Permits are
// released on every failure path so a concurrency slot never leaks.
func (c *Client) EncodeImageDescribed(ctx context.Context, img Image) (string, []float32, error) {
	if len(img.Bytes) == 0 {
		return "", nil, fmt.Errorf("empty image: %w", ErrEncoding)
	}

	if ok, reason := c.limiter.Acquire(ctx, ratelimit.Request{
		Model:           c.vision.Name,
		EstimatedTokens: visionTokenEstimate,
		Op:              ratelimit.OpVision,
	}); !ok {
		return "", nil, fmt.Errorf("vision permit denied (%s): %w", reason, ErrRateLimited)
	}

	description, usedTokens, err := c.describeImage(ctx, img)
	if err != nil {
		c.limiter.Release(0, "")
		return "", nil, fmt.Errorf("vision call: %w: %v", ErrUpstream, err)
	}
	c.limiter.Release(usedTokens, c.vision.Name)

	if strings.TrimSpace(description) == "" {
		return "", nil, fmt.Errorf("vision model returned empty description: %w", ErrUpstream)
	}

	vec, err := c.embedText(ctx, description)
	if err != nil {
		return "", nil, err
	}
	return description, vec, nil
}

func (c *Client) describeImage(ctx context.Context, img Image) (string, int, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Bytes))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.vision.Name,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage.TotalTokens, fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

// embedText acquires an embedding permit sized from the estimator, calls the
// embedding model, releases with actual usage, and normalizes the vector.
func (c *Client) embedText(ctx context.Context, text string) ([]float32, error) {
	if ok, reason := c.limiter.Acquire(ctx, ratelimit.Request{
		Model:           c.embed.Name,
		EstimatedTokens: c.estimate(text),
		Op:              ratelimit.OpEmbedding,
	}); !ok {
		return nil, fmt.Errorf("embedding permit denied (%s): %w", reason, ErrRateLimited)
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embed.Name),
	}
	if c.embed.Dims > 0 {
		req.Dimensions = c.embed.Dims
	}

	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		c.limiter.Release(0, "")
		return nil, fmt.Errorf("embedding call: %w: %v", ErrUpstream, err)
	}
	c.limiter.Release(resp.Usage.TotalTokens, c.embed.Name)

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response: %w", ErrUpstream)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	copy(vec, resp.Data[0].Embedding)
	if !vecmath.L2NormalizeInPlace(vec) {
		return nil, fmt.Errorf("zero-norm embedding vector: %w", ErrEncoding)
	}
	return vec, nil
}
