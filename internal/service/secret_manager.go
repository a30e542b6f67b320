package service

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	// AccessSecret returns the latest version of a secret. name is either a
	// bare secret ID or a full resource path.
	AccessSecret(ctx context.Context, name string) (string, error)
	Close() error
}

// secretAccessor is the part of the Secret Manager client the service uses.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type secretManagerService struct {
	client    secretAccessor
	projectID string
}

func NewSecretManagerService(ctx context.Context, projectID string, opts ...option.ClientOption) (SecretManagerService, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: projectID,
	}, nil
}

func (s *secretManagerService) AccessSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.resourceName(name),
	}

	result, err := s.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}

	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

func (s *secretManagerService) resourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
}

// ResolveWebhookSecret prefers an explicit secret value and otherwise reads
// secretName from Secret Manager. An empty result is not an error; the
// webhook endpoint then refuses every delivery.
func ResolveWebhookSecret(ctx context.Context, explicit, secretName string, sm SecretManagerService) (string, error) {
	if explicit != "" || secretName == "" {
		return explicit, nil
	}
	if sm == nil {
		return "", fmt.Errorf("%w: secret manager is required to read %s", ErrNotConfigured, secretName)
	}
	return sm.AccessSecret(ctx, secretName)
}
