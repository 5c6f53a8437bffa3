package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// secretsManagerAPI is the part of *secretsmanager.Client the provider calls.
type secretsManagerAPI interface {
	secretsmanager.ListSecretsAPIClient
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerProvider implements Provider using AWS Secrets Manager.
type AWSSecretsManagerProvider struct {
	client secretsManagerAPI
}

// NewAWSProvider creates a Secrets Manager provider for region using the default
// credential chain (env, shared profile, IRSA).
func NewAWSProvider(ctx context.Context, region string) (*AWSSecretsManagerProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AWSSecretsManagerProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecret fetches and decodes a secret value.
// Secrets are stored as flat JSON objects, e.g. {"client_id": "...", "account_id": 1042}.
func (p *AWSSecretsManagerProvider) GetSecret(ctx context.Context, key string) (map[string]string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch secret [%s]: %w", key, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret [%s] has no string value", key)
	}
	return decodeSecret(key, *out.SecretString)
}

// decodeSecret flattens a JSON object into strings. Numbers and booleans keep
// their literal text; nested values are rejected.
func decodeSecret(key, raw string) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid secret format for [%s]: %w", key, err)
	}

	result := make(map[string]string, len(fields))
	for name, v := range fields {
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		switch v[0] {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("secret [%s] field %q: %w", key, name, err)
			}
			result[name] = s
		case '{', '[':
			return nil, fmt.Errorf("secret [%s] field %q: nested values are not supported", key, name)
		default:
			if _, err := strconv.ParseFloat(string(v), 64); err != nil && string(v) != "true" && string(v) != "false" {
				return nil, fmt.Errorf("secret [%s] field %q: unexpected value %s", key, name, v)
			}
			result[name] = string(v)
		}
	}
	return result, nil
}

// ListSecrets returns the names of all secrets whose name starts with prefix,
// following pagination.
func (p *AWSSecretsManagerProvider) ListSecrets(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	input := &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{
			{
				Key:    types.FilterNameStringTypeName,
				Values: []string{prefix},
			},
		},
		MaxResults: aws.Int32(100),
	}

	paginator := secretsmanager.NewListSecretsPaginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list secrets with prefix [%s]: %w", prefix, err)
		}
		for _, entry := range page.SecretList {
			if entry.Name != nil {
				names = append(names, *entry.Name)
			}
		}
	}
	return names, nil
}
