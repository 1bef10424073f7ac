package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-backend/internal/analysis"
)

const testBaseURL = "https://openai.test/v1"

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d}

func newTestAnalyzer(t *testing.T, model string) *Analyzer {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	a, err := New(Options{APIKey: "sk-test", Model: model, BaseURL: testBaseURL, HTTPClient: client})
	require.NoError(t, err)
	return a
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
}

func mockJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(analysis.MockResult())
	require.NoError(t, err)
	return string(raw)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestAnalyzeImageSendsDataURI(t *testing.T) {
	a := newTestAnalyzer(t, "")
	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(body, &captured))
			return httpmock.NewJsonResponse(http.StatusOK, completion(mockJSON(t)))
		})

	got, err := a.Analyze(context.Background(), analysis.Input{Image: pngBytes, MimeType: "image/png", City: "Austin"})
	require.NoError(t, err)
	assert.Equal(t, 78, got.ComplianceScore)
	assert.Len(t, got.Violations, 2)

	assert.Equal(t, DefaultModel, captured["model"])
	assert.EqualValues(t, maxTokens, captured["max_tokens"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "Jurisdiction: Austin")
	url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestAnalyzeReasoningModelUsesCompletionTokens(t *testing.T) {
	a := newTestAnalyzer(t, "o4-mini")
	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(body, &captured))
			return httpmock.NewJsonResponse(http.StatusOK, completion(mockJSON(t)))
		})

	_, err := a.Analyze(context.Background(), analysis.Input{Image: pngBytes})
	require.NoError(t, err)
	assert.EqualValues(t, maxTokens, captured["max_completion_tokens"])
	assert.NotContains(t, captured, "max_tokens")
}

func TestAnalyzeRepairsInvalidJSON(t *testing.T) {
	a := newTestAnalyzer(t, "")
	responses := []string{`{"complianceScore": 78,`, mockJSON(t)}
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			next := responses[0]
			responses = responses[1:]
			return httpmock.NewJsonResponse(http.StatusOK, completion(next))
		})

	got, err := a.Analyze(context.Background(), analysis.Input{Image: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, 78, got.ComplianceScore)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestAnalyzeRejectsOutOfRangeScoreAfterRepair(t *testing.T) {
	a := newTestAnalyzer(t, "")
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, completion(`{"complianceScore": 140, "violations": [], "recommendations": []}`)))

	_, err := a.Analyze(context.Background(), analysis.Input{Image: pngBytes})
	require.ErrorIs(t, err, analysis.ErrInvalidAnalysis)
}

func TestAnalyzeSurfacesAPIError(t *testing.T) {
	a := newTestAnalyzer(t, "")
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
		}))

	_, err := a.Analyze(context.Background(), analysis.Input{Image: pngBytes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai chat completion")
}

func TestAnalyzeTextPlan(t *testing.T) {
	a := newTestAnalyzer(t, "")
	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(body, &captured))
			return httpmock.NewJsonResponse(http.StatusOK, completion(mockJSON(t)))
		})

	_, err := a.Analyze(context.Background(), analysis.Input{Image: []byte("Main panel 200A, 24 circuits"), MimeType: "text/plain"})
	require.NoError(t, err)
	messages := captured["messages"].([]any)
	assert.Contains(t, messages[1].(map[string]any)["content"], "Main panel 200A")
}

func TestAnalyzeUnsupportedFormat(t *testing.T) {
	a := newTestAnalyzer(t, "")
	_, err := a.Analyze(context.Background(), analysis.Input{Image: []byte{0, 1, 2}, MimeType: "application/zip"})
	require.Error(t, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
