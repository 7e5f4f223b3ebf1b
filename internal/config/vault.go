package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"resumegate/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// PasskeyPollInterval re-reads the passkey secret on this interval when positive
	PasskeyPollInterval time.Duration `mapstructure:"passkeyPollInterval"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 paths secrets are read from
type VaultSecrets struct {
	Passkey              string `mapstructure:"passkey"`              // key "passkey"
	GeminiKey            string `mapstructure:"geminiKey"`            // key "api_key"
	GoogleServiceAccount string `mapstructure:"googleServiceAccount"` // keys "client_email", "private_key"
}

// VaultSecret is the payload and version of a KVv2 secret
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// VaultClient reads KVv2 secrets
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// NewVaultClient connects to Vault and checks its health. It returns nil
// without error when Vault is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", apiCfg.Address,
			"namespace", cfg.Namespace,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the configured token over the token file
func resolveVaultToken(cfg VaultConfig, logger *errors.Logger) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
		if logger != nil {
			logger.Debug("Vault token read from file", "file", cfg.TokenFile)
		}
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// GetSecretV2 reads the secret at path from a KVv2 mount
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return decodeKV2(secret, path)
}

// decodeKV2 unwraps the data and metadata envelopes of a KVv2 read
func decodeKV2(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	raw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(raw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue accepts the numeric shapes the Vault client decodes versions into
func parseVersionValue(raw any, path string) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// maskSecret keeps the ends of long secrets for log correlation
func maskSecret(s string) string {
	switch {
	case len(s) > 8:
		return s[:4] + "****" + s[len(s)-4:]
	case s != "":
		return "****"
	default:
		return ""
	}
}

// ApplyVaultSecrets overrides file and environment secrets with values from Vault
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	if client == nil {
		return nil
	}
	return applySecrets(client, cfg, logger)
}

// secretReader is the part of VaultClient the appliers and watcher need.
type secretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

// secretBinding copies fields of one Vault secret into the config.
// apply reports how many fields it set.
type secretBinding struct {
	name  string
	path  func(*Config) string
	apply func(cfg *Config, data map[string]any) int
}

var secretBindings = []secretBinding{
	{
		name: "intake passkey",
		path: func(c *Config) string { return c.Vault.Secrets.Passkey },
		apply: func(c *Config, data map[string]any) int {
			if v, _ := data["passkey"].(string); v != "" {
				c.Intake.Passkey = v
				return 1
			}
			return 0
		},
	},
	{
		name: "Gemini API key",
		path: func(c *Config) string { return c.Vault.Secrets.GeminiKey },
		apply: func(c *Config, data map[string]any) int {
			if v, _ := data["api_key"].(string); v != "" {
				applyGeminiKeyToConfig(c, v)
				return 1
			}
			return 0
		},
	},
	{
		name: "Google service account",
		path: func(c *Config) string { return c.Vault.Secrets.GoogleServiceAccount },
		apply: func(c *Config, data map[string]any) int {
			n := 0
			if v, _ := data["client_email"].(string); v != "" {
				c.Sheets.ClientEmail = v
				n++
			}
			if v, _ := data["private_key"].(string); v != "" {
				c.Sheets.PrivateKey = NormalizePrivateKey(v)
				n++
			}
			return n
		},
	},
}

func applySecrets(client secretReader, cfg *Config, logger *errors.Logger) error {
	for _, b := range secretBindings {
		path := b.path(cfg)
		if path == "" {
			continue
		}
		secret, err := client.GetSecretV2(path)
		if err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", b.name, err)
		}
		loaded := b.apply(cfg, secret.Data)
		if logger == nil {
			continue
		}
		if loaded == 0 {
			logger.Warn("Vault secret is empty, keeping the configured value", "secret", b.name, "path", path)
		} else {
			logger.Info("Secret loaded from Vault", "secret", b.name, "fields", loaded, "version", secret.Version)
		}
	}
	return nil
}

// applyGeminiKeyToConfig sets the shared key and fills the review key when unset
func applyGeminiKeyToConfig(cfg *Config, geminiKey string) {
	cfg.AI.APIKey = geminiKey
	if cfg.AI.Review.APIKey == "" {
		cfg.AI.Review.APIKey = geminiKey
	}
}
