// Package workerproc turns queue payloads into review runs for the SQS
// consumers (cmd/worker and cmd/lambda-worker).
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"permit-backend/internal/queue"
	"permit-backend/internal/reviews"
)

// MessageMeta identifies a payload in logs without printing it.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

type ErrMissingReviewID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingReviewID) Error() string { return "missing review id" }

// ErrProcess wraps a failed run of a well-formed message.
type ErrProcess struct {
	ReviewID  string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process review"
	}
	return "process review: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivery cannot succeed.
func (e ErrProcess) Unrecoverable() bool {
	return errors.Is(e.Err, reviews.ErrReviewMissing)
}

// ParseMessage validates and decodes a queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.ReviewID) == "" {
		return msg, meta, ErrMissingReviewID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Process runs the review named by msg, carrying its request id.
func Process(ctx context.Context, runner reviews.Runner, msg queue.Message) error {
	if runner == nil {
		return errors.New("review runner not configured")
	}
	if strings.TrimSpace(msg.ReviewID) == "" {
		return ErrMissingReviewID{RequestID: msg.RequestID}
	}
	ctx = reviews.WithRequestID(ctx, msg.RequestID)
	if err := runner.Run(ctx, msg.ReviewID); err != nil {
		return ErrProcess{ReviewID: msg.ReviewID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// HandleMessage parses body and processes it.
func HandleMessage(ctx context.Context, runner reviews.Runner, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return Process(ctx, runner, msg)
}

// Retryable reports whether the message should be left on the queue for redelivery.
// Malformed payloads and reviews that no longer exist are dropped.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var procErr ErrProcess
	if errors.As(err, &procErr) {
		return !procErr.Unrecoverable()
	}
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingReviewID
	)
	if errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing) {
		return false
	}
	return true
}
