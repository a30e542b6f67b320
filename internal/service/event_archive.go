package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// EventArchiver keeps a copy of every verified webhook payload for audit and replay.
type EventArchiver interface {
	Archive(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error
}

// objectPutter is the part of the S3 client the archive uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3EventArchiver struct {
	client objectPutter
	bucket string
	logger zerolog.Logger
}

// NewS3EventArchiver writes payloads to bucket under stripe-events/YYYY/MM/DD/<event id>.json.
func NewS3EventArchiver(client objectPutter, bucket string, logger zerolog.Logger) EventArchiver {
	return &s3EventArchiver{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("service", "EventArchiver").Logger(),
	}
}

func (a *s3EventArchiver) Archive(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error {
	key := archiveKey(eventID, receivedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive event %s to s3://%s/%s: %w", eventID, a.bucket, key, err)
	}
	a.logger.Debug().Str("event_id", eventID).Str("key", key).Msg("Archived webhook payload")
	return nil
}

func archiveKey(eventID string, receivedAt time.Time) string {
	return fmt.Sprintf("stripe-events/%s/%s.json", receivedAt.UTC().Format("2006/01/02"), eventID)
}

type noopArchiver struct{}

// NewNoopEventArchiver is used when no archive bucket is configured.
func NewNoopEventArchiver() EventArchiver { return noopArchiver{} }

func (noopArchiver) Archive(context.Context, string, time.Time, []byte) error { return nil }
