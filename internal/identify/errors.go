package identify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
)

const (
	noCandidatesMessage = "No results received from AI model"
	noTextMessage       = "No plant information found in the response"
)

// classify maps backend failures onto the error taxonomy. Errors that are
// already classified pass through unchanged.
func classify(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperr.HTTP(apiErr.Code, apiReason(apiErr))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.Timeout, TimeoutMessage)
	}

	return apperr.Wrap(apperr.TransportError, err)
}

func apiReason(e genai.APIError) string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if e.Status != "" {
		return e.Status
	}
	return http.StatusText(e.Code)
}

// firstText returns the first text-bearing part of the first candidate
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperr.New(apperr.EmptyResult, noCandidatesMessage)
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", apperr.New(apperr.EmptyResult, noTextMessage)
	}

	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought && part.Text != "" {
			return part.Text, nil
		}
	}
	return "", apperr.New(apperr.EmptyResult, noTextMessage)
}
