package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"permit-backend/internal/bootstrap"
	"permit-backend/internal/reviews"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/telemetry"
	"permit-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds = 300
	defaultWorkerConcurrency = 4
)

func main() {
	cfg := config.Load()
	if err := telemetry.InitSentry(cfg.SentryDSN, cfg.Env, "worker"); err != nil {
		telemetry.Warn("worker.sentry.disabled", map[string]any{"error": err.Error()})
	}
	defer telemetry.FlushSentry(2 * time.Second)

	queueURL := strings.TrimSpace(cfg.ReviewQueueURL)
	if queueURL == "" {
		telemetry.Error("worker.config.invalid", map[string]any{"error": "REVIEW_QUEUE_URL is required"})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := max(1, envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency))

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		telemetry.Error("worker.aws_config.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	var client sqsAPI = sqs.NewFromConfig(awsCfg)

	// The worker only runs reviews; it never schedules them.
	cfg.ReviewScheduler = "inprocess"
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("worker.bootstrap.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	telemetry.Info("worker.started", map[string]any{
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})
	metricsSrv := serveMetrics(strings.TrimSpace(os.Getenv("WORKER_METRICS_ADDR")))

pollLoop:
	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(queueURL),
			MaxNumberOfMessages:         10,
			WaitTimeSeconds:             20,
			VisibilityTimeout:           int32(visibilitySeconds),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			telemetry.Warn("worker.receive.failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncJob("received")
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight reviews finish even after a shutdown signal.
				handleMessage(context.WithoutCancel(ctx), client, queueURL, app.Worker, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		telemetry.Warn("worker.shutdown.timeout", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// serveMetrics exposes /metrics on addr. An empty addr disables it.
func serveMetrics(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Warn("worker.metrics.failed", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
	return srv
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage runs one review job. The message is deleted when the run
// succeeds or can never succeed; otherwise it becomes visible again for retry.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, runner reviews.Runner, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.review.unparseable", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", decoded.RequestID) {
			metrics.IncJob("unrecoverable")
		}
		return
	}

	telemetry.Info("worker.review.received", baseFields(msg, decoded.ReviewID, decoded.RequestID))
	if err := workerproc.Process(ctx, runner, decoded); err != nil {
		fields := baseFields(msg, decoded.ReviewID, decoded.RequestID)
		fields["error"] = err.Error()
		if !workerproc.Retryable(err) {
			telemetry.Error("worker.review.unrecoverable", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.ReviewID, decoded.RequestID) {
				metrics.IncJob("unrecoverable")
			}
			return
		}
		telemetry.Error("worker.review.failed", fields)
		metrics.IncJob("failed")
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.ReviewID, decoded.RequestID) {
		telemetry.Info("worker.review.completed", baseFields(msg, decoded.ReviewID, decoded.RequestID))
		metrics.IncJob("completed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, reviewID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, reviewID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.review.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, reviewID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.review.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, reviewID, requestID string) map[string]any {
	fields := map[string]any{
		"review_id":      reviewID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
