package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"permit-backend/internal/bootstrap"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	if cfg.ReviewScheduler != "sqs" {
		// A frozen Lambda sandbox does not finish goroutines after the response.
		telemetry.Warn("lambda_http.scheduler.inprocess", map[string]any{"hint": "set REVIEW_SCHEDULER=sqs"})
	}
	if err := telemetry.InitSentry(cfg.SentryDSN, cfg.Env, "lambda-http"); err != nil {
		telemetry.Warn("lambda_http.sentry.disabled", map[string]any{"error": err.Error()})
	}
	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_http.bootstrap.failed", map[string]any{"error": initErr.Error()})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 500,
			Body:       `{"error":{"code":"bootstrap_failed","message":"service unavailable"}}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, initErr
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
