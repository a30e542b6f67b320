package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, params)
	body, _ := io.ReadAll(params.Body)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3EventArchiver_Archive(t *testing.T) {
	putter := &fakePutter{}
	archiver := NewS3EventArchiver(putter, "veloryn-events", zerolog.Nop())
	received := time.Date(2026, 10, 18, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	err := archiver.Archive(context.Background(), "evt_123", received, []byte(`{"id":"evt_123"}`))
	require.NoError(t, err)

	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "veloryn-events", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, "stripe-events/2026/10/19/evt_123.json", aws.ToString(putter.inputs[0].Key))
	assert.Equal(t, "application/json", aws.ToString(putter.inputs[0].ContentType))
	assert.Equal(t, `{"id":"evt_123"}`, string(putter.bodies[0]))
}

func TestS3EventArchiver_Error(t *testing.T) {
	archiver := NewS3EventArchiver(&fakePutter{err: errors.New("access denied")}, "veloryn-events", zerolog.Nop())

	err := archiver.Archive(context.Background(), "evt_123", time.Now(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt_123")
}
