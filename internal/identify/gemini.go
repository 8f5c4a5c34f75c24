package identify

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// DefaultModel is the multimodal model used when none is configured
const DefaultModel = "gemini-1.5-flash"

// TokenFunc resolves the API key for a request
type TokenFunc func(ctx context.Context) (string, error)

// GeminiConfig configures a direct Gemini backend
type GeminiConfig struct {
	Model      string
	BaseURL    string // optional override, used by tests and local gateways
	HTTPClient *http.Client
	Token      TokenFunc
}

// GeminiBackend calls the Gemini API directly with the google.golang.org/genai SDK
type GeminiBackend struct {
	cfg GeminiConfig

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by API key
}

// NewGeminiBackend creates a backend; the genai client is built lazily once
// the credential is known
func NewGeminiBackend(cfg GeminiConfig) *GeminiBackend {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &GeminiBackend{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}
}

// Generate returns the first text part of the model's answer
func (b *GeminiBackend) Generate(ctx context.Context, req models.IdentificationRequest) (string, error) {
	resp, err := b.GenerateContent(ctx, req)
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

// GenerateContent returns the full response envelope
func (b *GeminiBackend) GenerateContent(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
	token, err := b.cfg.Token(ctx)
	if err != nil {
		return nil, err
	}

	client, err := b.client(ctx, token)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Instruction),
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Parameters.Temperature),
		MaxOutputTokens: req.Parameters.MaxOutputTokens,
	}

	return client.Models.GenerateContent(ctx, b.cfg.Model, contents, config)
}

func (b *GeminiBackend) client(ctx context.Context, token string) (*genai.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.clients[token]; ok {
		return c, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.cfg.HTTPClient,
	}
	if b.cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = b.cfg.BaseURL
	}

	c, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	// A reset credential replaces the old client
	clear(b.clients)
	b.clients[token] = c
	return c, nil
}
