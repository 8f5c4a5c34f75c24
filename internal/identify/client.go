// Package identify sends an image to the identification model and returns
// its raw text answer.
package identify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// DefaultTimeout bounds a single identification
const DefaultTimeout = 30 * time.Second

// TimeoutMessage is shown when the model does not answer in time
const TimeoutMessage = "Request timed out. Please try again"

// Backend performs one call to an identification endpoint and returns the
// raw model text. Errors should already be classified as *apperr.Error.
type Backend interface {
	Generate(ctx context.Context, req models.IdentificationRequest) (string, error)
}

// Client races a backend call against a timeout
type Client struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a client; a zero timeout means DefaultTimeout
func NewClient(backend Backend, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		backend: backend,
		timeout: timeout,
		logger:  logging.OrNop(logger).Named("identify"),
	}
}

type outcome struct {
	text string
	err  error
}

// Identify sends image to the backend. Whichever settles first, the call or
// the timeout, decides the result; a late answer is dropped.
func (c *Client) Identify(ctx context.Context, image models.ImageBuffer) (string, error) {
	req := NewRequest(image)
	requestID := uuid.New().String()
	started := time.Now()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the abandoned call can always complete its send
	done := make(chan outcome, 1)
	go func() {
		text, err := c.backend.Generate(callCtx, req)
		done <- outcome{text: text, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			err := classify(out.err)
			c.logger.Warn("Identification failed",
				zap.String("request_id", requestID),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.Error(err))
			return "", err
		}
		c.logger.Info("Identification completed",
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(started)),
			zap.Int("chars", len(out.text)))
		return out.text, nil

	case <-timer.C:
		c.logger.Warn("Identification timed out",
			zap.String("request_id", requestID),
			zap.Duration("timeout", c.timeout))
		return "", apperr.New(apperr.Timeout, TimeoutMessage)

	case <-ctx.Done():
		return "", apperr.Wrap(apperr.TransportError, ctx.Err())
	}
}
