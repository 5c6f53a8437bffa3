package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/rfq-checker/pkg/secrets"
)

// AWSResolver resolves a typed value per credentials key from AWS Secrets Manager
// and caches it locally.
//
// Secret naming convention: {env}/{key}/{venue}
type AWSResolver[T any] struct {
	logger   *zap.Logger
	env      string
	venue    string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

// NewAWSResolver constructs a resolver for secrets under {env}/*/{venue}.
func NewAWSResolver[T any](
	logger *zap.Logger,
	env string,
	venue string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
) *AWSResolver[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSResolver[T]{
		logger:   logger,
		env:      env,
		venue:    venue,
		provider: provider,
		cache:    cache,
	}
}

func (r *AWSResolver[T]) cacheKey(key string) string {
	return strings.ToLower(key + "|" + r.venue)
}

// SecretName returns the Secrets Manager name for key.
func (r *AWSResolver[T]) SecretName(key string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, key, r.venue))
}

// Resolve returns the cached value for key or fetches and parses the secret.
func (r *AWSResolver[T]) Resolve(ctx context.Context, key string, parse func(map[string]string) (T, error)) (T, error) {
	var zero T
	ck := r.cacheKey(key)
	if v, ok := r.cache.Get(ck); ok {
		return v, nil
	}

	name := r.SecretName(key)
	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed", zap.String("secret", name), zap.Error(err))
		return zero, fmt.Errorf("resolve credentials %q: %w", key, err)
	}

	v, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("parse secret %q: %w", name, err)
	}
	r.cache.Put(ck, v)

	r.logger.Info("aws.credentials_resolved",
		zap.String("key", key),
		zap.String("venue", r.venue),
		zap.Int("cached", r.cache.Len()))
	return v, nil
}

// Forget drops key from the local cache so the next Resolve refetches it.
func (r *AWSResolver[T]) Forget(key string) {
	r.cache.Bust(r.cacheKey(key))
}

// Discover lists the keys that have a secret under {env}/{key}/{venue}.
func (r *AWSResolver[T]) Discover(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(r.env + "/")
	suffix := "/" + strings.ToLower(r.venue)

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover credentials: %w", err)
	}

	var keys []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, suffix) {
			continue
		}
		k := strings.TrimSuffix(strings.TrimPrefix(lower, prefix), suffix)
		if k != "" && !strings.Contains(k, "/") {
			keys = append(keys, k)
		}
	}

	r.logger.Info("aws.credentials_discovered", zap.Int("count", len(keys)), zap.Strings("keys", keys))
	return keys, nil
}
