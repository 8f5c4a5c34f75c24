package media

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// captureSession owns one live stream. The acquirer keeps at most one.
type captureSession struct {
	id        string
	stream    Stream
	startedAt time.Time

	stopOnce sync.Once
}

func newCaptureSession(stream Stream) *captureSession {
	return &captureSession{
		id:        uuid.New().String(),
		stream:    stream,
		startedAt: time.Now(),
	}
}

// stop releases the stream exactly once
func (s *captureSession) stop(logger *zap.Logger, reason string) {
	s.stopOnce.Do(func() {
		s.stream.Stop()
		logger.Info("Capture session stopped",
			zap.String("session_id", s.id[:8]),
			zap.String("reason", reason),
			zap.Duration("alive", time.Since(s.startedAt)))
	})
}
