package media

import (
	"context"
	"errors"
	"image"
)

// ErrPermissionDenied is returned by Camera.Open when the user or the device
// refuses access to the video feed
var ErrPermissionDenied = errors.New("camera access denied")

// Camera opens live video streams
type Camera interface {
	// Supported reports whether a camera is available at all
	Supported() bool
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live video stream. Stop releases the device and must be safe to
// call more than once.
type Stream interface {
	Snapshot() (image.Image, error)
	Stop()
}

// NoCamera is used when no camera is configured
type NoCamera struct{}

func (NoCamera) Supported() bool { return false }

func (NoCamera) Open(ctx context.Context) (Stream, error) {
	return nil, errors.New("camera not supported")
}
