// Package credential resolves the API key used for identification requests.
//
// With the client strategy the key is looked up in persistent storage, then
// fetched from a credential-issuing endpoint, then (interactive setups only)
// entered by the user. With the server strategy the key only ever comes from
// the server's own environment.
package credential

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/config"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// StorageKey is the fixed key the credential is persisted under
const StorageKey = "gemini_api_key"

// EnvKey is the environment variable read by the server strategy
const EnvKey = "GEMINI_API_KEY"

// Options configures a Provider
type Options struct {
	Strategy config.CredentialStrategy

	// Client strategy
	Store       Store
	EndpointURL string
	HTTPClient  *http.Client
	Prompter    Prompter // nil disables the interactive fallback

	// Server strategy. EnvToken is the key already loaded from EnvKey by the
	// config layer; Getenv (default os.Getenv) is only consulted when it is
	// empty.
	EnvToken string
	Getenv   func(string) string

	Logger *zap.Logger
}

// Provider resolves credentials through the configured strategy
type Provider struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	current *models.Credential
}

// NewProvider creates a credential provider
func NewProvider(opts Options) *Provider {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Provider{
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("credential"),
	}
}

// Acquire returns a credential, trying each source in order and stopping at
// the first success. It fails with an Unavailable error when none succeeds.
func (p *Provider) Acquire(ctx context.Context) (models.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return *p.current, nil
	}

	var (
		cred models.Credential
		ok   bool
	)
	if p.opts.Strategy == config.StrategyServer {
		cred, ok = p.fromEnvironment()
	} else {
		cred, ok = p.fromChain(ctx)
	}

	if !ok {
		return models.Credential{}, apperr.New(apperr.Unavailable,
			"API key not available. Please refresh the page or try again later")
	}

	p.current = &cred
	p.logger.Info("Credential resolved", zap.String("source", string(cred.Source)))
	return cred, nil
}

// Reset clears the persisted credential and runs the full chain again
func (p *Provider) Reset(ctx context.Context) (models.Credential, error) {
	p.mu.Lock()
	p.current = nil
	if p.opts.Store != nil {
		if err := p.opts.Store.Delete(StorageKey); err != nil {
			p.logger.Warn("Failed to clear stored credential", zap.Error(err))
		}
	}
	p.mu.Unlock()

	return p.Acquire(ctx)
}

// Current returns the last resolved credential, if any
func (p *Provider) Current() (models.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return models.Credential{}, false
	}
	return *p.current, true
}

// Token resolves the credential and returns only its token
func (p *Provider) Token(ctx context.Context) (string, error) {
	cred, err := p.Acquire(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (p *Provider) fromEnvironment() (models.Credential, bool) {
	token := strings.TrimSpace(p.opts.EnvToken)
	if token == "" {
		token = strings.TrimSpace(p.opts.Getenv(EnvKey))
	}
	if token == "" {
		return models.Credential{}, false
	}
	return models.Credential{Token: token, Source: models.SourceEnvironment}, true
}

func (p *Provider) fromChain(ctx context.Context) (models.Credential, bool) {
	if p.opts.Store != nil {
		stored, found, err := p.opts.Store.Get(StorageKey)
		if err != nil {
			p.logger.Warn("Failed to read stored credential", zap.Error(err))
		} else if found && strings.TrimSpace(stored) != "" {
			return models.Credential{Token: strings.TrimSpace(stored), Source: models.SourceCached}, true
		}
	}

	if p.opts.EndpointURL != "" {
		token, err := fetchRemote(ctx, p.opts.HTTPClient, p.opts.EndpointURL)
		if err == nil {
			p.persist(token)
			return models.Credential{Token: token, Source: models.SourceRemoteFetch}, true
		}
		p.logger.Warn("Failed to fetch credential", zap.String("url", p.opts.EndpointURL), zap.Error(err))
	}

	if p.opts.Prompter != nil {
		token, err := p.opts.Prompter.Prompt(ctx)
		token = strings.TrimSpace(token)
		if err == nil && token != "" {
			p.persist(token)
			return models.Credential{Token: token, Source: models.SourceUserEntered}, true
		}
		p.logger.Warn("No credential entered", zap.Error(err))
	}

	return models.Credential{}, false
}

func (p *Provider) persist(token string) {
	if p.opts.Store == nil {
		return
	}
	if err := p.opts.Store.Set(StorageKey, token); err != nil {
		p.logger.Warn("Failed to persist credential", zap.Error(err))
	}
}
