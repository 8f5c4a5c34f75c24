package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

const maxKeyResponseBytes = 64 * 1024

// fetchRemote issues a single GET to the credential-issuing endpoint. The
// body may be JSON ({"apiKey": "..."}) or the bare key as plain text.
func fetchRemote(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build key request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch API key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch API key: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var payload models.KeyResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", fmt.Errorf("failed to decode API key response: %w", err)
		}
		text = strings.TrimSpace(payload.APIKey)
	}

	if text == "" {
		return "", fmt.Errorf("retrieved empty API key")
	}
	return text, nil
}
