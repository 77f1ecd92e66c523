package config

import (
	"sync/atomic"
)

// Store publishes the active configuration. Readers always see a complete
// snapshot; Replace swaps the whole value at once.
type Store struct {
	current atomic.Pointer[Config]
}

func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Get returns the current snapshot. Callers must not mutate it.
func (s *Store) Get() *Config {
	return s.current.Load()
}

func (s *Store) Security() SecurityConfig {
	return s.current.Load().Security
}

func (s *Store) AutoMod() AutoModConfig {
	return s.current.Load().AutoMod
}

// Replace validates cfg and installs it. On error the previous snapshot stays active.
func (s *Store) Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

var globalStore atomic.Pointer[Store]

// SetGlobal installs the process-wide store used by Get.
func SetGlobal(s *Store) {
	globalStore.Store(s)
}

// Get returns the process-wide configuration, falling back to defaults.
func Get() *Config {
	if s := globalStore.Load(); s != nil {
		return s.Get()
	}
	return DefaultConfig()
}
