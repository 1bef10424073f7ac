package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSend(t *testing.T) {
	api := &fakeSQS{}
	client := NewSQSClientWithAPI(api, "https://sqs.test/reviews")

	if err := client.Send(context.Background(), Message{ReviewID: "r-1", Version: MessageVersion}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if aws.ToString(api.input.QueueUrl) != "https://sqs.test/reviews" {
		t.Fatalf("unexpected queue url %q", aws.ToString(api.input.QueueUrl))
	}
	msg, err := DecodeMessage([]byte(aws.ToString(api.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if msg.ReviewID != "r-1" {
		t.Fatalf("unexpected review id %q", msg.ReviewID)
	}
}

func TestSQSClientSendWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	client := NewSQSClientWithAPI(&fakeSQS{err: boom}, "https://sqs.test/reviews")
	if err := client.Send(context.Background(), Message{ReviewID: "r-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "us-east-1", " "); err == nil {
		t.Fatal("expected error for empty queue url")
	}
}
