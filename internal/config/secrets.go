package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// secretStore holds secrets outside the config file.
type secretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// fileSecrets is a flat JSON object of secrets, readable only by the owner.
type fileSecrets struct {
	path string
}

func newFileSecrets(path string) fileSecrets {
	return fileSecrets{path: path}
}

func (f fileSecrets) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (f fileSecrets) Get(key string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("secret %q not found", key)
	}
	return val, nil
}

func (f fileSecrets) Set(key, value string) error {
	secrets, err := f.read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[key] = value

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}

// applySecrets fills secrets not set through the environment from the
// secret store.
func applySecrets(cfg *Config, sec secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := sec.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// EnsureAdminToken generates and stores an admin token when none is
// configured. It reports whether a new token was created.
func EnsureAdminToken(cfg *Config) (bool, error) {
	return ensureAdminToken(cfg, newFileSecrets(secretsFilePath()))
}

func ensureAdminToken(cfg *Config, sec secretStore) (bool, error) {
	if cfg.Server.AdminToken != "" {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generating admin token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := sec.Set(keyAdminToken, token); err != nil {
		return false, fmt.Errorf("storing admin token: %w", err)
	}
	cfg.Server.AdminToken = token
	return true, nil
}
