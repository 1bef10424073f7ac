package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStatus(t *testing.T) {
	ctx := context.Background()

	report := NewService(nil, "mock").Status(ctx)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "disabled", report.Checks["database"])
	assert.Equal(t, "mock", report.Analyzer)

	report = NewService(pingFunc(func(context.Context) error { return nil }), "openai").Status(ctx)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "ok", report.Checks["database"])

	report = NewService(pingFunc(func(context.Context) error { return errors.New("refused") }), "mock").Status(ctx)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unavailable", report.Checks["database"])
}
