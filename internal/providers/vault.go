package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/nppfbt/ndi-verifier/internal/log"
)

// HTTPClientTimeout http client timeout for vault calls
const HTTPClientTimeout = 10 * time.Second

const seedField = "seed"

// NewVaultClient checks vault configuration and creates a new vault client
func NewVaultClient(address, token string) (*api.Client, error) {
	if address == "" {
		return nil, errors.New("vault address is not specified")
	}
	if token == "" {
		return nil, errors.New("vault access token is not specified")
	}

	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient.Timeout = HTTPClientTimeout

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)

	return client, nil
}

// EventSeed reads the event gateway auth seed from the vault KV path.
// The seed is a credential and must never live in the source or the config
// file of a real deployment.
func EventSeed(ctx context.Context, client *api.Client, path string) (string, error) {
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		log.Error(ctx, "cannot read event seed from vault", "err", err, "path", path)
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found in vault path <%s>", path)
	}

	data := secret.Data
	// KV v2 nests the fields under "data"
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	seed, ok := data[seedField].(string)
	if !ok || seed == "" {
		return "", fmt.Errorf("vault secret at <%s> has no %q field", path, seedField)
	}
	return seed, nil
}
