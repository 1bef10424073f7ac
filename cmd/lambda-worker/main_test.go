package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
)

type runnerFunc func(ctx context.Context, reviewID string) error

func (f runnerFunc) Run(ctx context.Context, reviewID string) error { return f(ctx, reviewID) }

func TestProcessRecordsReportsOnlyRetryableFailures(t *testing.T) {
	runner := runnerFunc(func(_ context.Context, reviewID string) error {
		if reviewID == "rev-bad" {
			return errors.New("store unavailable")
		}
		return nil
	})

	resp := processRecords(context.Background(), runner, []events.SQSMessage{
		{MessageId: "m1", Body: `{"reviewId":"rev-ok","version":1}`},
		{MessageId: "m2", Body: `{"reviewId":"rev-bad","version":1}`},
		{MessageId: "m3", Body: `not json`},
	})

	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m2"}}, resp.BatchItemFailures)
}
