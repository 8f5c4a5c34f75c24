package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shehryarbajwa/plant-identifier/internal/apperr"
	"github.com/shehryarbajwa/plant-identifier/internal/config"
	"github.com/shehryarbajwa/plant-identifier/internal/credential"
	"github.com/shehryarbajwa/plant-identifier/internal/identify"
	"github.com/shehryarbajwa/plant-identifier/internal/ratelimit"
	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

const ficusAnswer = "1. Common Name: Ficus\n2. Scientific Name: Ficus elastica\n9. Key Facts: - Glossy leaves\n- Easy care\n10. Care Instructions: Water weekly"

const jpegDataURI = "data:image/jpeg;base64,/9j/4AAQ"

type upstreamFunc func(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error)

func (f upstreamFunc) GenerateContent(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
	return f(ctx, req)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		SDKHTTPResponse: &genai.HTTPResponse{Headers: http.Header{"X-Upstream": {"1"}}},
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

// upstreamBackend adapts an Upstream to the identify.Backend used by /api/identify
type upstreamBackend struct{ up Upstream }

func (b upstreamBackend) Generate(ctx context.Context, req models.IdentificationRequest) (string, error) {
	resp, err := b.up.GenerateContent(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

type testServer struct {
	*httptest.Server
	limiter *ratelimit.Limiter
}

func newTestServer(t *testing.T, up Upstream, opts Options) *testServer {
	t.Helper()
	h := NewHandler(up, identify.NewClient(upstreamBackend{up}, time.Second, nil), 4, nil)
	keys := NewKeyHandler(func(ctx context.Context) (string, error) { return "server-key", nil })
	limiter := ratelimit.NewLimiter(100, 50)

	srv := httptest.NewServer(SetupRoutes(h, keys, limiter, opts))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, limiter: limiter}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func okUpstream(text string) Upstream {
	return upstreamFunc(func(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
		return textResponse(text), nil
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, okUpstream(""), Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestIdentifyPlantRelaysEnvelope(t *testing.T) {
	var got models.IdentificationRequest
	srv := newTestServer(t, upstreamFunc(func(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
		got = req
		return textResponse(ficusAnswer), nil
	}), Options{})

	resp := postJSON(t, srv.URL+"/api/identify-plant", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.NotContains(t, envelope, "sdkHttpResponse")
	assert.Contains(t, envelope, "candidates")

	assert.Equal(t, "image/jpeg", got.Image.MIMEType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}, got.Image.Data)
	assert.Equal(t, identify.Instruction, got.Instruction)
	assert.Equal(t, float32(0.4), got.Parameters.Temperature)
}

func TestIdentifyPlantThroughProxyBackend(t *testing.T) {
	srv := newTestServer(t, okUpstream(ficusAnswer), Options{})

	client := identify.NewClient(identify.NewProxyBackend(srv.URL, nil), time.Second, nil)
	text, err := client.Identify(context.Background(), models.ImageBuffer{Data: []byte{1, 2, 3}, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, ficusAnswer, text)
}

func TestIdentifyPlantErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		err     error
		status  int
		message string
	}{
		{
			name:    "no_image",
			body:    map[string]string{},
			status:  http.StatusBadRequest,
			message: "No image data provided",
		},
		{
			name:    "bad_base64",
			body:    models.IdentifyPlantRequest{ImageData: "data:image/png;base64,%%%"},
			status:  http.StatusBadRequest,
			message: "Invalid image data",
		},
		{
			name:    "no_key",
			body:    models.IdentifyPlantRequest{ImageData: jpegDataURI},
			err:     apperr.New(apperr.Unavailable, "API key not available"),
			status:  http.StatusInternalServerError,
			message: "API key not configured on server",
		},
		{
			name:    "upstream_rejects",
			body:    models.IdentifyPlantRequest{ImageData: jpegDataURI},
			err:     genai.APIError{Code: 403, Message: "API key not valid", Status: "PERMISSION_DENIED"},
			status:  http.StatusForbidden,
			message: "API Error (403): API key not valid",
		},
		{
			name:    "network",
			body:    models.IdentifyPlantRequest{ImageData: jpegDataURI},
			err:     errors.New("connection reset"),
			status:  http.StatusInternalServerError,
			message: "Server error: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, upstreamFunc(func(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return textResponse(ficusAnswer), nil
			}), Options{})

			resp := postJSON(t, srv.URL+"/api/identify-plant", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.True(t, strings.HasPrefix(decodeError(t, resp), tt.message))
		})
	}
}

func TestIdentifyReturnsParsedRecord(t *testing.T) {
	srv := newTestServer(t, okUpstream(ficusAnswer), Options{})

	resp := postJSON(t, srv.URL+"/api/identify", models.IdentifyPlantRequest{ImageData: "/9j/4AAQ", MIMEType: "image/jpeg"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.IdentifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Ficus", body.Plant.CommonName)
	assert.Equal(t, "Ficus elastica", body.Plant.ScientificName)
	assert.Equal(t, []string{"Glossy leaves", "Easy care"}, body.Plant.KeyFacts)
	assert.Equal(t, models.DefaultAttribute, body.Plant.WaterNeeds)
	assert.Equal(t, ficusAnswer, body.Raw)
}

func TestIdentifyMapsClassifiedErrors(t *testing.T) {
	srv := newTestServer(t, upstreamFunc(func(ctx context.Context, req models.IdentificationRequest) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 429, Message: "Resource exhausted"}
	}), Options{})

	resp := postJSON(t, srv.URL+"/api/identify", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "API Error (429): Resource exhausted", decodeError(t, resp))
}

func TestServerSideGeminiPipeline(t *testing.T) {
	var apiKey string
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Common Name: Jade Plant"}]}}]}`))
	}))
	defer gemini.Close()

	env := map[string]string{credential.EnvKey: "env-key"}
	provider := credential.NewProvider(credential.Options{
		Strategy: config.StrategyServer,
		Getenv:   func(k string) string { return env[k] },
	})
	backend := identify.NewGeminiBackend(identify.GeminiConfig{BaseURL: gemini.URL, Token: provider.Token})

	h := NewHandler(backend, identify.NewClient(backend, time.Second, nil), 2, nil)
	srv := httptest.NewServer(SetupRoutes(h, nil, ratelimit.NewLimiter(100, 10), Options{}))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/identify", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.IdentifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Jade Plant", body.Plant.CommonName)
	assert.Equal(t, "env-key", apiKey)
}

func TestServerWithoutKey(t *testing.T) {
	provider := credential.NewProvider(credential.Options{
		Strategy: config.StrategyServer,
		Getenv:   func(string) string { return "" },
	})
	backend := identify.NewGeminiBackend(identify.GeminiConfig{Token: provider.Token})

	h := NewHandler(backend, identify.NewClient(backend, time.Second, nil), 2, nil)
	srv := httptest.NewServer(SetupRoutes(h, nil, ratelimit.NewLimiter(100, 10), Options{}))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/identify-plant", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, msgKeyNotConfigured, decodeError(t, resp))
}

func TestKeyEndpoint(t *testing.T) {
	disabled := newTestServer(t, okUpstream(""), Options{})
	resp, err := http.Get(disabled.URL + "/api/config")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	srv := newTestServer(t, okUpstream(""), Options{ExposeAPIKey: true})

	resp, err = http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var key models.KeyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&key))
	assert.Equal(t, "server-key", key.APIKey)

	post := postJSON(t, srv.URL+"/api/config", map[string]string{})
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
	assert.Equal(t, "Method Not Allowed", decodeError(t, post))
}

func TestKeyEndpointFeedsCredentialProvider(t *testing.T) {
	srv := newTestServer(t, okUpstream(""), Options{ExposeAPIKey: true})

	store, err := credential.NewFileStore(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	provider := credential.NewProvider(credential.Options{
		Strategy:    config.StrategyClient,
		Store:       store,
		EndpointURL: srv.URL + "/api/config",
	})

	cred, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "server-key", cred.Token)
	assert.Equal(t, models.SourceRemoteFetch, cred.Source)
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(okUpstream(ficusAnswer), nil, 1, nil)
	srv := httptest.NewServer(SetupRoutes(h, nil, ratelimit.NewLimiter(100, 1), Options{}))
	defer srv.Close()

	first := postJSON(t, srv.URL+"/api/identify-plant", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "100", first.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header.Get("X-RateLimit-Remaining"))

	second := postJSON(t, srv.URL+"/api/identify-plant", models.IdentifyPlantRequest{ImageData: jpegDataURI})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Contains(t, decodeError(t, second), "Rate limit exceeded")

	// Health checks are never limited
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func postFrom(t *testing.T, url, forwardedFor string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(models.IdentifyPlantRequest{ImageData: jpegDataURI})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	h := NewHandler(okUpstream(ficusAnswer), nil, 1, nil)
	srv := httptest.NewServer(SetupRoutes(h, nil, ratelimit.NewLimiter(100, 1), Options{}))
	defer srv.Close()

	first := postFrom(t, srv.URL+"/api/identify-plant", "203.0.113.1")
	assert.Equal(t, http.StatusOK, first.StatusCode)

	// A rotated header is still the same caller
	second := postFrom(t, srv.URL+"/api/identify-plant", "203.0.113.2")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestRateLimitTrustedProxy(t *testing.T) {
	h := NewHandler(okUpstream(ficusAnswer), nil, 1, nil)
	srv := httptest.NewServer(SetupRoutes(h, nil, ratelimit.NewLimiter(100, 1), Options{TrustProxy: true}))
	defer srv.Close()

	assert.Equal(t, http.StatusOK, postFrom(t, srv.URL+"/api/identify-plant", "203.0.113.1").StatusCode)
	assert.Equal(t, http.StatusOK, postFrom(t, srv.URL+"/api/identify-plant", "203.0.113.2, 10.0.0.1").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(t, srv.URL+"/api/identify-plant", " 203.0.113.1 ").StatusCode)
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, okUpstream(ficusAnswer), Options{})

	huge := models.IdentifyPlantRequest{ImageData: strings.Repeat("A", MaxBodyBytes+1)}
	resp := postJSON(t, srv.URL+"/api/identify-plant", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, okUpstream(""), Options{AllowedOrigin: "https://plants.example"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/identify-plant", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://plants.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Plant Identifier</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0o644))

	srv := newTestServer(t, okUpstream(""), Options{StaticDir: dir})

	for path, want := range map[string]string{
		"/":              "Plant Identifier",
		"/app.js":        "console.log",
		"/garden/fern/1": "Plant Identifier",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, buf.String(), want, path)
	}
}
