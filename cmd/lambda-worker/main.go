package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"permit-backend/internal/bootstrap"
	"permit-backend/internal/reviews"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/telemetry"
	"permit-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	cfg.ReviewScheduler = "inprocess"
	built, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap.failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, app.Worker, event.Records), nil
}

// processRecords reports only retryable failures back to SQS. Malformed jobs
// and jobs for missing reviews are acknowledged so they are not redelivered.
func processRecords(ctx context.Context, runner reviews.Runner, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncJob("received")
		err := workerproc.HandleMessage(ctx, runner, record.Body)
		switch {
		case err == nil:
			metrics.IncJob("completed")
		case workerproc.Retryable(err):
			telemetry.Error("lambda_worker.review.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			metrics.IncJob("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		default:
			telemetry.Error("lambda_worker.review.unrecoverable", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			metrics.IncJob("unrecoverable")
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
