package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Checker-Finance/rfq-checker/internal/rfq"
)

// Venue is the secret-name suffix for RFQ credentials.
const Venue = "rfq"

// Credentials is one RFQ account's client-credentials set plus optional
// endpoint overrides.
type Credentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // empty means use the configured default
	TokenURL     string
	AccountID    string
}

// ClientConfig merges c over the given defaults.
func (c Credentials) ClientConfig(def rfq.ClientConfig) rfq.ClientConfig {
	out := def
	out.ClientID = c.ClientID
	out.ClientSecret = c.ClientSecret
	if c.BaseURL != "" {
		out.BaseURL = c.BaseURL
	}
	if c.TokenURL != "" {
		out.TokenURL = c.TokenURL
	}
	return out
}

// CredentialResolver yields credentials for a profile's credentials key.
type CredentialResolver interface {
	Resolve(ctx context.Context, key string) (Credentials, error)
	// Forget drops anything cached for key, e.g. after the token endpoint rejects it.
	Forget(key string)
}

// ParseCredentials reads the flat secret map:
//
//	{"client_id": "...", "client_secret": "...", "base_url": "...", "token_url": "...", "account_id": "..."}
func ParseCredentials(m map[string]string) (Credentials, error) {
	c := Credentials{
		ClientID:     strings.TrimSpace(m["client_id"]),
		ClientSecret: strings.TrimSpace(m["client_secret"]),
		BaseURL:      strings.TrimSpace(m["base_url"]),
		TokenURL:     strings.TrimSpace(m["token_url"]),
		AccountID:    strings.TrimSpace(m["account_id"]),
	}
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

// AWSCredentialResolver resolves Credentials from Secrets Manager.
type AWSCredentialResolver struct {
	*AWSResolver[Credentials]
}

// NewAWSCredentialResolver wraps an AWSResolver for the rfq venue.
func NewAWSCredentialResolver(r *AWSResolver[Credentials]) *AWSCredentialResolver {
	return &AWSCredentialResolver{AWSResolver: r}
}

func (r *AWSCredentialResolver) Resolve(ctx context.Context, key string) (Credentials, error) {
	return r.AWSResolver.Resolve(ctx, key, ParseCredentials)
}

// EnvResolver returns one credential set, taken from the environment, for every key.
type EnvResolver struct {
	creds Credentials
}

// NewEnvResolver validates creds up front.
func NewEnvResolver(creds Credentials) (*EnvResolver, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("RFQ_CLIENT_ID and RFQ_CLIENT_SECRET are required when CREDENTIALS_SOURCE=env")
	}
	return &EnvResolver{creds: creds}, nil
}

func (r *EnvResolver) Resolve(_ context.Context, _ string) (Credentials, error) {
	return r.creds, nil
}

func (r *EnvResolver) Forget(string) {}
