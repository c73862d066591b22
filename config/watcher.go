package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher exposes read access to a live configuration.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// Verify at compile time that FileWatcher implements Watcher
var _ Watcher = (*FileWatcher)(nil)

// FileWatcher reloads the configuration file when it changes on disk.
// Most components are wired once at startup, so subscribers typically
// just log that a restart is needed; the watcher still rejects invalid
// files so a bad edit never replaces a known-good configuration.
type FileWatcher struct {
	// Using atomic.Value for thread-safe config access
	currentConfig atomic.Value
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger
	subscribers   []chan<- *Config
}

// NewFileWatcher loads the initial configuration and starts watching the
// file for writes.
func NewFileWatcher(configPath string, logger *zap.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	fw := &FileWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}

	initial, err := LoadFile(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("load initial config: %w", err)
	}
	fw.currentConfig.Store(initial)

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	go fw.watch()
	return fw, nil
}

// Subscribe allows components to receive config updates
func (fw *FileWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	fw.subscribers = append(fw.subscribers, ch)
	return ch
}

// GetCurrentConfig returns the current configuration thread-safely
func (fw *FileWatcher) GetCurrentConfig() *Config {
	return fw.currentConfig.Load().(*Config)
}

func (fw *FileWatcher) watch() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				fw.reload()
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) reload() {
	fw.logger.Info("Detected config file change, reloading")

	newConfig, err := LoadFile(fw.configPath)
	if err != nil {
		fw.logger.Error("Failed to load new config, keeping current", zap.Error(err))
		return
	}

	fw.currentConfig.Store(newConfig)

	for _, sub := range fw.subscribers {
		select {
		case sub <- newConfig:
		default:
			// Skip if subscriber is not ready
		}
	}

	fw.logger.Info("Configuration reloaded")
}

func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
