package service

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretAccessor struct {
	requested []string
	value     string
	err       error
}

func (f *fakeSecretAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.requested = append(f.requested, req.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(f.value)},
	}, nil
}

func (f *fakeSecretAccessor) Close() error { return nil }

func TestSecretManagerService_AccessSecret(t *testing.T) {
	fake := &fakeSecretAccessor{value: "whsec_abc\n"}
	svc := &secretManagerService{client: fake, projectID: "veloryn"}

	got, err := svc.AccessSecret(context.Background(), "stripe-webhook-secret")
	require.NoError(t, err)
	assert.Equal(t, "whsec_abc", got)

	_, err = svc.AccessSecret(context.Background(), "projects/other/secrets/stripe")
	require.NoError(t, err)
	_, err = svc.AccessSecret(context.Background(), "projects/other/secrets/stripe/versions/3")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"projects/veloryn/secrets/stripe-webhook-secret/versions/latest",
		"projects/other/secrets/stripe/versions/latest",
		"projects/other/secrets/stripe/versions/3",
	}, fake.requested)
}

func TestSecretManagerService_AccessSecretError(t *testing.T) {
	svc := &secretManagerService{client: &fakeSecretAccessor{err: errors.New("permission denied")}, projectID: "veloryn"}

	_, err := svc.AccessSecret(context.Background(), "stripe-webhook-secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestNewSecretManagerServiceRequiresProject(t *testing.T) {
	_, err := NewSecretManagerService(context.Background(), "")
	assert.Error(t, err)
}

func TestResolveWebhookSecret(t *testing.T) {
	ctx := context.Background()
	sm := &secretManagerService{client: &fakeSecretAccessor{value: "whsec_from_sm"}, projectID: "veloryn"}

	got, err := ResolveWebhookSecret(ctx, "whsec_env", "stripe-webhook-secret", sm)
	require.NoError(t, err)
	assert.Equal(t, "whsec_env", got)

	got, err = ResolveWebhookSecret(ctx, "", "stripe-webhook-secret", sm)
	require.NoError(t, err)
	assert.Equal(t, "whsec_from_sm", got)

	got, err = ResolveWebhookSecret(ctx, "", "", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ResolveWebhookSecret(ctx, "", "stripe-webhook-secret", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
