package identify

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

type backendFunc func(ctx context.Context, req models.IdentificationRequest) (string, error)

func (f backendFunc) Generate(ctx context.Context, req models.IdentificationRequest) (string, error) {
	return f(ctx, req)
}

var testImage = models.ImageBuffer{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}

func TestIdentifyBuildsFixedRequest(t *testing.T) {
	var got models.IdentificationRequest
	client := NewClient(backendFunc(func(ctx context.Context, req models.IdentificationRequest) (string, error) {
		got = req
		return "Common Name: Fern", nil
	}), time.Second, nil)

	text, err := client.Identify(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "Common Name: Fern", text)

	assert.Equal(t, Instruction, got.Instruction)
	assert.Equal(t, float32(0.4), got.Parameters.Temperature)
	assert.Equal(t, int32(1000), got.Parameters.MaxOutputTokens)
	assert.Equal(t, testImage, got.Image)
}

func TestInstructionListsTenSectionsInOrder(t *testing.T) {
	labels := []string{
		"1. Common Name:", "2. Scientific Name:", "3. Description:", "4. Water Needs:",
		"5. Light Requirements:", "6. Growth Rate:", "7. Mature Size:", "8. Ideal Climate:",
		"9. Key Facts:", "10. Care Instructions:",
	}
	last := -1
	for _, label := range labels {
		idx := strings.Index(Instruction, label)
		require.GreaterOrEqual(t, idx, 0, label)
		assert.Greater(t, idx, last, label)
		last = idx
	}
}

func TestIdentifyTimeoutIgnoresLateResult(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	var cancelled atomic.Bool

	client := NewClient(backendFunc(func(ctx context.Context, req models.IdentificationRequest) (string, error) {
		defer close(finished)
		<-release
		cancelled.Store(ctx.Err() != nil)
		return "Common Name: Too Late", nil
	}), 20*time.Millisecond, nil)

	text, err := client.Identify(context.Background(), testImage)
	require.Error(t, err)
	assert.Empty(t, text)
	assert.True(t, apperr.Is(err, apperr.Timeout))
	assert.Equal(t, TimeoutMessage, err.Error())

	// The abandoned call completes without blocking and saw its context cancelled
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned backend call never finished")
	}
	assert.True(t, cancelled.Load())
}

func TestIdentifyParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(backendFunc(func(ctx context.Context, req models.IdentificationRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), time.Minute, nil)

	cancel()
	_, err := client.Identify(ctx, testImage)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TransportError))
}

func TestIdentifyClassifiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    apperr.Kind
		message string
	}{
		{
			name:    "api_error",
			err:     genai.APIError{Code: 400, Message: "Invalid image", Status: "INVALID_ARGUMENT"},
			kind:    apperr.HTTPError,
			message: "API Error (400): Invalid image",
		},
		{
			name:    "api_error_without_message",
			err:     genai.APIError{Code: 503},
			kind:    apperr.HTTPError,
			message: "API Error (503): Service Unavailable",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			kind:    apperr.Timeout,
			message: TimeoutMessage,
		},
		{
			name:    "transport",
			err:     errors.New("dial tcp: connection refused"),
			kind:    apperr.TransportError,
			message: "dial tcp: connection refused",
		},
		{
			name:    "already_classified",
			err:     apperr.New(apperr.Unavailable, "API key not available"),
			kind:    apperr.Unavailable,
			message: "API key not available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(backendFunc(func(ctx context.Context, req models.IdentificationRequest) (string, error) {
				return "", tt.err
			}), time.Second, nil)

			_, err := client.Identify(context.Background(), testImage)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestFirstText(t *testing.T) {
	_, err := firstText(&genai.GenerateContentResponse{})
	assert.True(t, apperr.Is(err, apperr.EmptyResult))
	assert.Equal(t, noCandidatesMessage, err.Error())

	_, err = firstText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.True(t, apperr.Is(err, apperr.EmptyResult))
	assert.Equal(t, noTextMessage, err.Error())

	text, err := firstText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/png"}},
			{Text: "thinking...", Thought: true},
			{Text: "Common Name: Aloe"},
			{Text: "ignored"},
		}},
	}}})
	require.NoError(t, err)
	assert.Equal(t, "Common Name: Aloe", text)
}
