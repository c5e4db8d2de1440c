package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContentPayloadAndDecoding(t *testing.T) {
	var calls int32
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [
					{"text": "Here is your photo"},
					{"inlineData": {"mimeType": "image/png", "data": "SU1H"}}
				]},
				"finishReason": "STOP"
			}],
			"modelVersion": "gemini-test-001"
		}`))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "secret", BaseURL: srv.URL + "/", Model: "gemini-test"})
	resp, err := client.GenerateContent(context.Background(), Request{Parts: []Part{
		TextPart{Text: "instruction"},
		ImagePart{MediaType: "image/jpeg", Data: "AAAA"},
		ImagePart{MediaType: "image/jpeg", Data: "BBBB"},
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	contents := captured["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "instruction", parts[0].(map[string]any)["text"])
	first := parts[1].(map[string]any)["inlineData"].(map[string]any)
	second := parts[2].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "AAAA", first["data"])
	assert.Equal(t, "image/jpeg", first["mimeType"])
	assert.Equal(t, "BBBB", second["data"])

	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "STOP", resp.Candidates[0].FinishReason)
	assert.Equal(t, "gemini-test-001", resp.ModelVersion)
	img, ok := resp.FirstImage()
	require.True(t, ok)
	assert.Equal(t, "SU1H", img.Data)
	assert.Equal(t, []string{"Here is your photo"}, resp.Texts())
}

func TestGenerateContentWithoutKeySkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	assert.False(t, client.HasCredentials())
	_, err := client.GenerateContent(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestGenerateContentMapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := client.GenerateContent(context.Background(), Request{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
	assert.Equal(t, "gemini status 429: Resource has been exhausted", err.Error())
}

func TestGenerateContentPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := client.GenerateContent(context.Background(), Request{})
	assert.EqualError(t, err, "gemini status 502: upstream down")
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Options{APIKey: "  k  "})
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.True(t, client.HasCredentials())
}

func TestFirstImageScansInOrder(t *testing.T) {
	resp := &Response{Candidates: []Candidate{
		{Parts: []Part{TextPart{Text: "no image here"}}},
		{Parts: []Part{
			TextPart{Text: "still text"},
			ImagePart{MediaType: "image/png", Data: ""},
			ImagePart{MediaType: "image/webp", Data: "Rk9V"},
			ImagePart{MediaType: "image/png", Data: "U0VD"},
		}},
	}}
	img, ok := resp.FirstImage()
	require.True(t, ok)
	assert.Equal(t, "Rk9V", img.Data)
	assert.Equal(t, "image/webp", img.MediaType)

	_, ok = (&Response{Candidates: []Candidate{{Parts: []Part{TextPart{Text: "x"}}}}}).FirstImage()
	assert.False(t, ok)

	var nilResp *Response
	_, ok = nilResp.FirstImage()
	assert.False(t, ok)
}

func TestDecodeResponseDropsEmptyParts(t *testing.T) {
	resp := decodeResponse(geminiGenerateContentResponse{
		Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{
			{},
			{InlineData: &geminiInlineData{MimeType: "image/png"}},
			{Text: "ok"},
		}}}},
		PromptFeedback: &geminiPromptFeedback{BlockReason: "SAFETY"},
	})
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, []Part{TextPart{Text: "ok"}}, resp.Candidates[0].Parts)
	assert.Equal(t, "SAFETY", resp.PromptFeedback)
}
