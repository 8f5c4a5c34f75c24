package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// IdentifyPlantPath is the proxy route that forwards to the model
const IdentifyPlantPath = "/api/identify-plant"

// ProxyBackend sends images to the plant identifier server, which holds the
// API key and forwards the request to the model
type ProxyBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxyBackend creates a backend for the server at baseURL
func NewProxyBackend(baseURL string, httpClient *http.Client) *ProxyBackend {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ProxyBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Generate posts the image and extracts the text from the returned envelope
func (b *ProxyBackend) Generate(ctx context.Context, req models.IdentificationRequest) (string, error) {
	payload, err := json.Marshal(models.IdentifyPlantRequest{
		ImageData: req.Image.DataURI(),
		MIMEType:  req.Image.MIMEType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+IdentifyPlantPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Wrap(apperr.TransportError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.TransportError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", proxyError(resp.StatusCode, body)
	}

	var envelope genai.GenerateContentResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", apperr.New(apperr.EmptyResult, noCandidatesMessage)
	}
	return firstText(&envelope)
}

// proxyError reads {"error": "..."} or {"error": {"message": "..."}}
func proxyError(status int, body []byte) error {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}

	reason := ""
	if json.Unmarshal(body, &payload) == nil && len(payload.Error) > 0 {
		var text string
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &text) == nil {
			reason = text
		} else if json.Unmarshal(payload.Error, &nested) == nil {
			reason = nested.Message
		}
	}
	reason = strings.TrimSpace(reason)

	// The server already formats upstream failures as "API Error (...)"
	if strings.HasPrefix(reason, "API Error (") {
		return &apperr.Error{Kind: apperr.HTTPError, Status: status, Message: reason}
	}
	if reason == "" {
		reason = http.StatusText(status)
	}
	return apperr.HTTP(status, reason)
}
