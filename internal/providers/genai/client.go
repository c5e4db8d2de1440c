package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"idphoto/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-image"
)

// ErrMissingAPIKey is returned when a call is attempted without credentials.
var ErrMissingAPIKey = errors.New("genai: missing api key")

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a Gemini client with sane defaults. A nil HTTP client is
// replaced by one without an overall timeout; calls are bounded by ctx.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// GenerateContent sends req as one generateContent call. It never retries.
func (c *Client) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invokeGemini(ctx, path, encodeRequest(req), &raw); err != nil {
		return nil, err
	}

	resp := decodeResponse(raw)
	c.logger.Debug().
		Str("model", c.model).
		Int("candidates", len(resp.Candidates)).
		Str("model_version", resp.ModelVersion).
		Msg("genai: generateContent completed")
	return resp, nil
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed geminiErrorResponse
		if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
			apiErr.Status = parsed.Error.Status
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}
