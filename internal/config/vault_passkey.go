package config

import (
	"fmt"
	"sync"
	"time"

	"resumegate/internal/errors"
)

// VaultPasskeyWatcher serves the intake passkey from a Vault KVv2 secret and
// polls it for new versions, so a rotated passkey takes effect without a restart.
// The last good passkey stays in use while Vault is unreachable.
type VaultPasskeyWatcher struct {
	mu sync.RWMutex

	client       secretReader
	secretPath   string
	pollInterval time.Duration
	logger       *errors.Logger

	passkey     string
	lastVersion int64
	running     bool
	stopChan    chan struct{}
}

// NewVaultPasskeyWatcher creates a watcher seeded with the passkey already loaded at startup
func NewVaultPasskeyWatcher(client secretReader, secretPath string, pollInterval time.Duration, initial string, logger *errors.Logger) *VaultPasskeyWatcher {
	return &VaultPasskeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		logger:       logger,
		passkey:      initial,
		stopChan:     make(chan struct{}),
	}
}

// StartVaultPasskeyWatcher connects to Vault and starts polling the configured passkey secret
func StartVaultPasskeyWatcher(cfg *Config, logger *errors.Logger) (*VaultPasskeyWatcher, error) {
	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("vault integration is disabled")
	}

	vw := NewVaultPasskeyWatcher(client, cfg.Vault.Secrets.Passkey, cfg.Vault.PasskeyPollInterval, cfg.Intake.Passkey, logger)
	if err := vw.Start(); err != nil {
		return nil, err
	}
	return vw, nil
}

// Passkey returns the most recently fetched passkey
func (vw *VaultPasskeyWatcher) Passkey() string {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return vw.passkey
}

// Start begins polling Vault for secret changes
func (vw *VaultPasskeyWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault passkey watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault passkey poll interval must be positive")
	}
	vw.running = true
	go vw.pollLoop()
	if vw.logger != nil {
		vw.logger.Info("Vault passkey watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	}
	return nil
}

// Stop stops the watcher
func (vw *VaultPasskeyWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	if vw.logger != nil {
		vw.logger.Info("Vault passkey watcher stopped")
	}
	return nil
}

func (vw *VaultPasskeyWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := vw.refresh(); err != nil && vw.logger != nil {
				vw.logger.LogError(err, "Failed to refresh intake passkey from Vault")
			}
		case <-vw.stopChan:
			return
		}
	}
}

// refresh reads the secret and swaps in its passkey when the version moved
// forward. It reports whether the passkey was replaced.
func (vw *VaultPasskeyWatcher) refresh() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()

	if secret.Version <= vw.lastVersion {
		return false, nil
	}
	vw.lastVersion = secret.Version

	passkey, _ := secret.Data["passkey"].(string)
	if passkey == "" {
		if vw.logger != nil {
			vw.logger.Warn("Vault passkey secret has no passkey, keeping the previous one",
				"secret_path", vw.secretPath, "version", secret.Version)
		}
		return false, nil
	}
	if passkey == vw.passkey {
		return false, nil
	}

	vw.passkey = passkey
	if vw.logger != nil {
		vw.logger.Info("Intake passkey rotated from Vault", "version", secret.Version, "passkey", maskSecret(passkey))
	}
	return true, nil
}

// Status returns the current status of the watcher for health reporting
func (vw *VaultPasskeyWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
}
