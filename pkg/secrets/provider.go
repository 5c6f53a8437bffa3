package secrets

import "context"

// Provider is the secret store the checker reads venue credentials from.
// AWS Secrets Manager is the production implementation; tests supply maps.
type Provider interface {
	// GetSecret retrieves a JSON-object secret and returns it as a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name matches the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
