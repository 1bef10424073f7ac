package reviews

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-backend/internal/analysis"
)

func TestReviewTransitions(t *testing.T) {
	base := Review{ID: "r-1", CreatedAt: testEpoch, Outcome: Analyzing{}}

	done, err := base.Complete(analysis.MockResult())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status())
	a, ok := done.Analysis()
	require.True(t, ok)
	assert.Equal(t, 78, a.ComplianceScore)
	_, hasMsg := done.ErrorMessage()
	assert.False(t, hasMsg)

	_, err = done.Fail("late")
	assert.True(t, errors.Is(err, ErrAlreadyTerminal))

	failed, err := base.Fail("analyzer unavailable")
	require.NoError(t, err)
	msg, ok := failed.ErrorMessage()
	require.True(t, ok)
	assert.Equal(t, "analyzer unavailable", msg)
	_, hasAnalysis := failed.Analysis()
	assert.False(t, hasAnalysis)

	_, err = failed.Complete(analysis.MockResult())
	assert.True(t, errors.Is(err, ErrAlreadyTerminal))
}

func TestZeroOutcomeIsPending(t *testing.T) {
	r := Review{ID: "r-0"}
	assert.Equal(t, StatusPending, r.Status())
	_, err := r.Fail("x")
	require.NoError(t, err)
}

func TestReviewJSONAnalyzing(t *testing.T) {
	r := Review{ID: "r-1", CreatedAt: testEpoch, Outcome: Analyzing{}, ImageSource: "upload", ImageKey: "reviews/r-1/plan.png"}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "r-1",
		"createdAt": "2026-03-14T09:30:00Z",
		"status": "analyzing",
		"analysis": null,
		"errorMessage": null,
		"imageUrl": "upload",
		"city": null
	}`, string(raw))
	assert.NotContains(t, string(raw), "reviews/r-1")
}

func TestReviewJSONFailedCarriesOnlyMessage(t *testing.T) {
	r, err := Review{ID: "r-2", CreatedAt: testEpoch, Outcome: Analyzing{}, City: "Austin"}.Fail("timed out")
	require.NoError(t, err)
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "failed", decoded["status"])
	assert.Equal(t, "timed out", decoded["errorMessage"])
	assert.Nil(t, decoded["analysis"])
	assert.Equal(t, "Austin", decoded["city"])
}

func TestReviewUnmarshalCompleted(t *testing.T) {
	done, err := Review{ID: "r-3", CreatedAt: testEpoch, Outcome: Analyzing{}}.Complete(analysis.MockResult())
	require.NoError(t, err)
	raw, err := json.Marshal(done)
	require.NoError(t, err)

	var got Review
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, StatusCompleted, got.Status())
	a, ok := got.Analysis()
	require.True(t, ok)
	assert.Len(t, a.Recommendations, 4)
	assert.True(t, got.CreatedAt.Equal(testEpoch))
}

func TestReviewUnmarshalRejectsInconsistentPayloads(t *testing.T) {
	var r Review
	assert.Error(t, json.Unmarshal([]byte(`{"id":"r","status":"completed","analysis":null}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"r","status":"queued"}`), &r))
}
