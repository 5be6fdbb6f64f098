package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	sessionDir = "whatsapp-session"
	usageFile  = "usage.json"
)

// Dir returns the path to <root>/.boardroom/
func Dir(root string) string {
	return filepath.Join(root, boardroomDir)
}

// SessionPath returns the path to <root>/.boardroom/whatsapp-session/
func SessionPath(root string) string {
	return filepath.Join(Dir(root), sessionDir)
}

// UsagePath returns the path to <root>/.boardroom/usage.json
func UsagePath(root string) string {
	return filepath.Join(Dir(root), usageFile)
}

// Exists checks if a project has been configured (has .boardroom/config.json).
func Exists(root string) bool {
	_, err := os.Stat(filepath.Join(Dir(root), configFile))
	return err == nil
}

// StoragePath resolves the storage location: the SQLite database file, or
// the directory of JSON transcripts for the file driver.
func (c *Config) StoragePath() string {
	p := c.Project.Storage.Path
	if p == "" {
		if c.Project.Storage.Driver == StorageFile {
			p = "conversations"
		} else {
			p = "boardroom.db"
		}
		return filepath.Join(Dir(c.Root), p)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// SaveProject writes <root>/.boardroom/config.json.
func SaveProject(root string, cfg *ProjectConfig) error {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, configFile), data, 0o644)
}
