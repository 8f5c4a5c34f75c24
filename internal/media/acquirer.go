// Package media acquires a single image for identification, either from a
// file or from a live camera stream.
package media

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/logging"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// State is the acquisition state
type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file-selected"
	StateCameraLive   State = "camera-live"
)

// JPEGQuality is used for camera captures
const JPEGQuality = 90

const (
	msgNotImage       = "Please upload an image file (JPEG, PNG, etc.)"
	msgTooLarge       = "Image too large. Please upload an image smaller than 5MB"
	msgNoCamera       = "Camera is not supported on your device or browser"
	msgCameraDenied   = "Camera access denied. Please allow camera access to use this feature"
	msgCaptureFailed  = "Failed to capture image"
	msgCameraNotLive  = "Camera is not active"
	msgFileReadFailed = "Error reading file"
)

// Acquirer is the acquisition state machine. It is the only owner of the
// capture session slot.
type Acquirer struct {
	camera       Camera
	resetDisplay func()
	logger       *zap.Logger

	mu      sync.Mutex
	state   State
	buffer  *models.ImageBuffer
	session *captureSession
}

// NewAcquirer creates an acquirer. resetDisplay is called before entering
// FileSelected or CameraLive and may be nil.
func NewAcquirer(camera Camera, resetDisplay func(), logger *zap.Logger) *Acquirer {
	if camera == nil {
		camera = NoCamera{}
	}
	if resetDisplay == nil {
		resetDisplay = func() {}
	}
	return &Acquirer{
		camera:       camera,
		resetDisplay: resetDisplay,
		logger:       logging.OrNop(logger).Named("media"),
		state:        StateIdle,
	}
}

// State returns the current acquisition state
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CameraSupported reports whether StartCamera can succeed at all
func (a *Acquirer) CameraSupported() bool {
	return a.camera.Supported()
}

// SelectFile validates an image and makes it the pending buffer. Any live
// camera session is torn down first.
func (a *Acquirer) SelectFile(name, mimeType string, data []byte) error {
	return a.selectFile(name, mimeType, int64(len(data)), func() ([]byte, error) {
		return data, nil
	})
}

// LoadFile reads an image from disk and selects it. Oversized files are
// rejected before they are read.
func (a *Acquirer) LoadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &apperr.Error{Kind: apperr.InvalidInput, Message: msgFileReadFailed, Err: err}
	}

	return a.selectFile(info.Name(), detectMIME(path), info.Size(), func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

func (a *Acquirer) selectFile(name, mimeType string, size int64, read func() ([]byte, error)) error {
	a.resetDisplay()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.teardownLocked("file selected")
	a.buffer = nil
	a.state = StateIdle

	if !models.IsImageMIME(mimeType) {
		return apperr.New(apperr.InvalidInput, msgNotImage)
	}
	if size > models.MaxImageBytes {
		return apperr.New(apperr.InvalidInput, msgTooLarge)
	}

	data, err := read()
	if err != nil {
		return &apperr.Error{Kind: apperr.InvalidInput, Message: msgFileReadFailed, Err: err}
	}

	a.buffer = &models.ImageBuffer{Data: data, MIMEType: mimeType, Source: "file"}
	a.state = StateFileSelected
	a.logger.Debug("File selected",
		zap.String("name", name),
		zap.String("mime", mimeType),
		zap.Int("bytes", len(data)))
	return nil
}

// StartCamera opens a new capture session, tearing down any live one first
func (a *Acquirer) StartCamera(ctx context.Context) error {
	a.resetDisplay()

	if !a.camera.Supported() {
		return apperr.New(apperr.CapabilityError, msgNoCamera)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.teardownLocked("camera restarted")

	stream, err := a.camera.Open(ctx)
	if err != nil {
		a.state = StateIdle
		if errors.Is(err, ErrPermissionDenied) {
			return &apperr.Error{Kind: apperr.PermissionDenied, Message: msgCameraDenied, Err: err}
		}
		return &apperr.Error{Kind: apperr.DeviceError, Message: "Camera error: " + err.Error(), Err: err}
	}

	a.session = newCaptureSession(stream)
	a.buffer = nil
	a.state = StateCameraLive
	a.logger.Info("Capture session started", zap.String("session_id", a.session.id[:8]))
	return nil
}

// Capture snapshots the current frame as a JPEG and ends the session. On a
// snapshot failure the session stays live.
func (a *Acquirer) Capture() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateCameraLive || a.session == nil {
		return apperr.New(apperr.DeviceError, msgCameraNotLive)
	}

	frame, err := a.session.stream.Snapshot()
	if err != nil {
		return &apperr.Error{Kind: apperr.DeviceError, Message: msgCaptureFailed, Err: err}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return &apperr.Error{Kind: apperr.DeviceError, Message: msgCaptureFailed, Err: err}
	}

	a.teardownLocked("captured")
	a.buffer = &models.ImageBuffer{Data: buf.Bytes(), MIMEType: "image/jpeg", Source: "camera"}
	a.state = StateFileSelected
	return nil
}

// Cancel ends a live session without producing an image
func (a *Acquirer) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateCameraLive {
		return
	}
	a.teardownLocked("cancelled")
	a.state = StateIdle
}

// Suspend tears down the live session when the app loses visibility
func (a *Acquirer) Suspend() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardownLocked("hidden")
}

// Close tears down the live session on shutdown
func (a *Acquirer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardownLocked("closed")
}

// Take hands out the pending buffer once and returns to Idle
func (a *Acquirer) Take() (models.ImageBuffer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateFileSelected || a.buffer == nil {
		return models.ImageBuffer{}, false
	}

	buf := *a.buffer
	a.buffer = nil
	a.state = StateIdle
	return buf, true
}

func (a *Acquirer) teardownLocked(reason string) {
	if a.session == nil {
		return
	}
	a.session.stop(a.logger, reason)
	a.session = nil
}

// detectMIME goes by extension, then by sniffing the first 512 bytes
func detectMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return http.DetectContentType(head[:n])
}
