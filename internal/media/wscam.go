package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/logging"
)

// ErrNoFrame is returned by Snapshot before the first frame arrives
var ErrNoFrame = errors.New("no frame received from camera yet")

// WebSocketCamera reads frames from a device feed that pushes one encoded
// image (JPEG or PNG) per binary websocket message
type WebSocketCamera struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewWebSocketCamera creates a camera for the feed at url. An empty url means
// no camera is available.
func NewWebSocketCamera(url string, header http.Header, logger *zap.Logger) *WebSocketCamera {
	return &WebSocketCamera{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logging.OrNop(logger).Named("wscam"),
	}
}

func (c *WebSocketCamera) Supported() bool {
	return c.url != ""
}

// Open connects to the feed and starts reading frames in the background
func (c *WebSocketCamera) Open(ctx context.Context) (Stream, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w (status %d)", ErrPermissionDenied, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to camera: %w", err)
	}

	c.logger.Info("Connected to camera", zap.String("url", c.url))

	s := &wsStream{
		conn:   conn,
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go s.readFrames()
	return s, nil
}

type wsStream struct {
	conn   *websocket.Conn
	done   chan struct{}
	logger *zap.Logger

	mu      sync.Mutex
	latest  []byte
	readErr error

	stopOnce sync.Once
}

func (s *wsStream) readFrames() {
	defer close(s.done)

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Camera feed error", zap.Error(err))
			}
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		s.mu.Lock()
		s.latest = message
		s.mu.Unlock()
	}
}

// Snapshot decodes the most recent frame
func (s *wsStream) Snapshot() (image.Image, error) {
	s.mu.Lock()
	frame, readErr := s.latest, s.readErr
	s.mu.Unlock()

	if frame == nil {
		if readErr != nil {
			return nil, fmt.Errorf("camera feed closed: %w", readErr)
		}
		return nil, ErrNoFrame
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Stop closes the feed and waits for the reader to exit
func (s *wsStream) Stop() {
	s.stopOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.conn.Close()
		<-s.done
	})
}
