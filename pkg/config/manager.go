package config

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"status-probe-engine/pkg/types"
)

// ReloadDebounce collapses the burst of filesystem events an editor or
// ConfigMap update produces into a single reload.
const ReloadDebounce = 2 * time.Second

// Manager holds the current engine configuration and swaps it atomically
// when the underlying file changes.
type Manager struct {
	mu        sync.RWMutex
	current   *types.EngineConfig
	path      string
	watcher   *fsnotify.Watcher
	log       *logrus.Logger
	debounce  time.Duration
	timer     *time.Timer
	lastSum   [sha256.Size]byte
	listeners []func(*types.EngineConfig)
}

// NewManager loads the configuration from path and prepares a watcher for
// subsequent changes. Watch must be called to start reloading.
func NewManager(path string, log *logrus.Logger) (*Manager, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:     path,
		watcher:  watcher,
		log:      log,
		debounce: ReloadDebounce,
	}
	cfg, err := Load(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	m.current = cfg
	if data, err := os.ReadFile(path); err == nil {
		m.lastSum = sha256.Sum256(data)
	}
	return m, nil
}

// NewStatic wraps a fixed configuration without any file backing. Reload
// never fires; intended for tests and for running without a config file.
func NewStatic(cfg types.EngineConfig, log *logrus.Logger) *Manager {
	return &Manager{current: &cfg, log: log}
}

// Get returns the current configuration.
func (m *Manager) Get() *types.EngineConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnReload registers a callback invoked with the new configuration after
// every successful reload.
func (m *Manager) OnReload(fn func(*types.EngineConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Watch starts watching the config file until the context is canceled.
// The parent directory is watched rather than the file itself, because
// ConfigMap volumes replace the file through symlink swaps that remove the
// watched inode.
func (m *Manager) Watch(ctx context.Context) error {
	if m.watcher == nil {
		return nil
	}
	if err := m.watcher.Add(filepath.Dir(m.path)); err != nil {
		return err
	}
	target := filepath.Clean(m.path)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-m.watcher.Events:
				if !ok {
					return
				}
				if !m.affectsConfig(event, target) {
					continue
				}
				m.log.WithFields(logrus.Fields{
					"config_path": m.path,
					"event":       event.Op.String(),
				}).Info("Config file changed, scheduling reload")
				m.scheduleReload()
			case err, ok := <-m.watcher.Errors:
				if !ok {
					return
				}
				m.log.WithField("error", err).Error("Config watcher error")
			}
		}
	}()
	return nil
}

// affectsConfig decides whether a filesystem event may have changed the
// config file. Rename and Remove anywhere in the directory count, since
// symlink swaps surface as those.
func (m *Manager) affectsConfig(event fsnotify.Event, target string) bool {
	if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
		return true
	}
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (m *Manager) scheduleReload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.reload)
}

// reload swaps in the new configuration if the file content actually
// changed and still validates. A broken file keeps the previous config.
func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"config_path": m.path,
			"error":       err,
		}).Error("Failed to read config file for reload")
		return
	}
	sum := sha256.Sum256(data)

	m.mu.Lock()
	if sum == m.lastSum {
		m.mu.Unlock()
		m.log.WithField("config_path", m.path).Info("Config file content unchanged, skipping reload")
		return
	}
	m.mu.Unlock()

	cfg, err := Load(m.path)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"config_path": m.path,
			"error":       err,
		}).Error("Failed to reload config, keeping existing config")
		return
	}

	m.mu.Lock()
	m.current = cfg
	m.lastSum = sum
	listeners := append([]func(*types.EngineConfig){}, m.listeners...)
	m.mu.Unlock()

	m.log.WithField("config_path", m.path).Info("Config reloaded successfully")
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Close stops the watcher and any pending reload.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}
