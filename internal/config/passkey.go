package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"resumegate/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// PasskeySource yields the shared secret uploads must present.
type PasskeySource interface {
	Passkey() string
}

// StaticPasskey is a passkey fixed at startup.
type StaticPasskey string

func (s StaticPasskey) Passkey() string { return string(s) }

// PasskeyWatcher serves a passkey read from a file and re-reads it whenever
// the file changes. The parent directory is watched so atomic replacements
// (rename over, symlink swaps of mounted secrets) are picked up.
type PasskeyWatcher struct {
	mu      sync.RWMutex
	path    string
	passkey string

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer
	stopChan      chan struct{}
	stopOnce      sync.Once

	logger *errors.Logger
}

// NewPasskeyWatcher reads path once and starts watching it.
func NewPasskeyWatcher(path string, debounceDelay time.Duration, logger *errors.Logger) (*PasskeyWatcher, error) {
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}

	pw := &PasskeyWatcher{
		path:          path,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		logger:        logger,
	}

	passkey, err := readPasskeyFile(path)
	if err != nil {
		return nil, err
	}
	pw.passkey = passkey

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	pw.fsWatcher = watcher

	go pw.watchLoop()

	logger.Info("Passkey file watcher started", "file", path, "debounce_delay", debounceDelay)
	return pw, nil
}

// Passkey returns the most recently loaded passkey.
func (pw *PasskeyWatcher) Passkey() string {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.passkey
}

// Stop ends the watch loop. It is safe to call more than once.
func (pw *PasskeyWatcher) Stop() error {
	var err error
	pw.stopOnce.Do(func() {
		close(pw.stopChan)
		pw.mu.Lock()
		if pw.debounceTimer != nil {
			pw.debounceTimer.Stop()
		}
		pw.mu.Unlock()
		err = pw.fsWatcher.Close()
	})
	return err
}

func (pw *PasskeyWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.isRelevant(event) {
				pw.scheduleReload()
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			pw.logger.LogError(err, "Passkey file watcher error")

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *PasskeyWatcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	// Mounted secrets swap a "..data" symlink rather than touching the file.
	base := filepath.Base(event.Name)
	return filepath.Clean(event.Name) == filepath.Clean(pw.path) || strings.HasPrefix(base, "..")
}

func (pw *PasskeyWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, pw.reload)
}

func (pw *PasskeyWatcher) reload() {
	passkey, err := readPasskeyFile(pw.path)
	if err != nil {
		// The previous passkey stays in effect.
		pw.logger.LogError(err, "Failed to reload passkey file", "file", pw.path)
		return
	}

	pw.mu.Lock()
	changed := passkey != pw.passkey
	pw.passkey = passkey
	pw.mu.Unlock()

	if changed {
		pw.logger.Info("Passkey reloaded from file", "file", pw.path)
	}
}

func readPasskeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read passkey file: %w", err)
	}
	passkey := strings.TrimSpace(string(data))
	if passkey == "" {
		return "", fmt.Errorf("passkey file %s is empty", path)
	}
	return passkey, nil
}
