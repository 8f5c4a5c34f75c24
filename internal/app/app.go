// Package app wires acquisition, identification and presentation into one
// application-state object.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/display"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/internal/media"
	"github.com/shehryarbajwa/plant-identifier/internal/parser"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// Identifier returns the raw model answer for an image
type Identifier interface {
	Identify(ctx context.Context, image models.ImageBuffer) (string, error)
}

// Credentials resolves the API key up front. Nil when the key lives on the
// server.
type Credentials interface {
	Acquire(ctx context.Context) (models.Credential, error)
}

// Options configures an App
type Options struct {
	Camera      media.Camera
	Client      Identifier
	Credentials Credentials
	Sink        *display.Sink
	Logger      *zap.Logger
}

// App owns the acquirer, the identification client and the display
type App struct {
	acquirer    *media.Acquirer
	client      Identifier
	credentials Credentials
	sink        *display.Sink
	logger      *zap.Logger

	mu        sync.Mutex
	available bool
}

// New creates an App. Identification stays disabled until Init succeeds.
func New(opts Options) *App {
	sink := opts.Sink
	if sink == nil {
		sink = display.NewSink(nil)
	}
	logger := logging.OrNop(opts.Logger)

	return &App{
		acquirer:    media.NewAcquirer(opts.Camera, sink.Reset, logger),
		client:      opts.Client,
		credentials: opts.Credentials,
		sink:        sink,
		logger:      logger.Named("app"),
	}
}

// Init resolves the credential. On failure the display switches to the
// unavailable state and identification is refused.
func (a *App) Init(ctx context.Context) error {
	if a.credentials != nil {
		cred, err := a.credentials.Acquire(ctx)
		if err != nil {
			a.setAvailable(false)
			a.sink.ShowError(err.Error())
			return err
		}
		a.logger.Info("Credential ready", zap.String("source", string(cred.Source)))
	}

	a.setAvailable(true)
	return nil
}

// Available reports whether identification requests are accepted
func (a *App) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available
}

// Acquirer exposes the acquisition state machine
func (a *App) Acquirer() *media.Acquirer {
	return a.acquirer
}

// IdentifyFile loads the image at path and identifies it
func (a *App) IdentifyFile(ctx context.Context, path string) (models.PlantRecord, error) {
	if err := a.acquirer.LoadFile(path); err != nil {
		return models.PlantRecord{}, a.fail(err)
	}
	return a.identifyPending(ctx)
}

// IdentifyImage identifies image bytes that were already read
func (a *App) IdentifyImage(ctx context.Context, name, mimeType string, data []byte) (models.PlantRecord, error) {
	if err := a.acquirer.SelectFile(name, mimeType, data); err != nil {
		return models.PlantRecord{}, a.fail(err)
	}
	return a.identifyPending(ctx)
}

// StartCamera opens a live capture session
func (a *App) StartCamera(ctx context.Context) error {
	if err := a.acquirer.StartCamera(ctx); err != nil {
		return a.fail(err)
	}
	return nil
}

// Capture snapshots the live camera and identifies the frame
func (a *App) Capture(ctx context.Context) (models.PlantRecord, error) {
	if err := a.acquirer.Capture(); err != nil {
		return models.PlantRecord{}, a.fail(err)
	}
	return a.identifyPending(ctx)
}

// CancelCamera ends the live session without identifying anything
func (a *App) CancelCamera() {
	a.acquirer.Cancel()
}

// VisibilityHidden releases the camera when the app is no longer visible
func (a *App) VisibilityHidden() {
	a.acquirer.Suspend()
}

// Close releases the camera on shutdown
func (a *App) Close() {
	a.acquirer.Close()
}

// identifyPending sends the acquired image and shows the parsed result.
// Overlapping calls are not serialized: the last one to finish owns the display.
func (a *App) identifyPending(ctx context.Context) (models.PlantRecord, error) {
	image, ok := a.acquirer.Take()
	if !ok {
		return models.PlantRecord{}, a.fail(apperr.New(apperr.InvalidInput, "No image selected"))
	}

	if !a.Available() {
		return models.PlantRecord{}, a.fail(apperr.New(apperr.Unavailable,
			"API key not available. Please refresh the page and try again"))
	}

	a.sink.ShowLoading()

	raw, err := a.client.Identify(ctx, image)
	if err != nil {
		return models.PlantRecord{}, a.fail(err)
	}

	record := parser.Parse(raw)
	a.sink.ShowResult(record)
	return record, nil
}

// fail shows err in its user-facing form and returns it unchanged
func (a *App) fail(err error) error {
	a.logger.Warn("Operation failed",
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err))
	a.sink.ShowError(apperr.UserMessage(err))
	return err
}

func (a *App) setAvailable(available bool) {
	a.mu.Lock()
	a.available = available
	a.mu.Unlock()

	a.sink.SetAvailable(available)
}
