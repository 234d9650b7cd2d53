// Package prefs provides JSON-based durable key-value storage.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const prefsFile = "preferences.json"

// Prefs stores application preferences and per-image records as a
// key-value map persisted to a single JSON file.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	path   string
}

// Load reads preferences from ~/.config/sample-annotator/preferences.json.
// Returns an empty Prefs if the file doesn't exist or is unreadable;
// a failed read never surfaces to the caller.
func Load() *Prefs {
	p := &Prefs{
		values: make(map[string]json.RawMessage),
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	dir := filepath.Join(configDir, "sample-annotator")
	p.path = filepath.Join(dir, prefsFile)

	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// NewInMemory returns a Prefs that is never written to disk. Used in tests
// and as a fallback when the config dir is unavailable.
func NewInMemory() *Prefs {
	return &Prefs{values: make(map[string]json.RawMessage)}
}

// Save writes preferences to disk. A Prefs without a path is in-memory
// only and Save is a no-op.
func (p *Prefs) Save() error {
	if p.path == "" {
		return nil
	}

	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// GetRecord unmarshals the record stored under key into out.
// Returns false if the key is absent or the record doesn't parse.
func (p *Prefs) GetRecord(key string, out interface{}) bool {
	p.mu.RLock()
	raw, ok := p.values[key]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SetRecord stores a JSON-serializable record under key.
func (p *Prefs) SetRecord(key string, val interface{}) {
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.values[key] = raw
	p.mu.Unlock()
}

// Delete removes the record stored under key.
func (p *Prefs) Delete(key string) {
	p.mu.Lock()
	delete(p.values, key)
	p.mu.Unlock()
}

// Float returns a float64 preference, or fallback if not set.
func (p *Prefs) Float(key string, fallback float64) float64 {
	var v float64
	if p.GetRecord(key, &v) {
		return v
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.SetRecord(key, val)
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	var v string
	p.GetRecord(key, &v)
	return v
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.SetRecord(key, val)
}

// Bool returns a bool preference, or fallback if not set.
func (p *Prefs) Bool(key string, fallback bool) bool {
	var v bool
	if p.GetRecord(key, &v) {
		return v
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) {
	p.SetRecord(key, val)
}
