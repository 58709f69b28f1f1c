package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved runtime file locations for user config, logs, and session databases.
type Paths struct {
	RootDir     string
	ConfigFile  string
	LogFile     string
	SessionsDir string
}

func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	root := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}
	sessions := filepath.Join(root, SessionsDir)
	if err := os.MkdirAll(sessions, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create sessions dir: %w", err)
	}

	return Paths{
		RootDir:     root,
		ConfigFile:  filepath.Join(root, ConfigFilename),
		LogFile:     filepath.Join(root, LogFilename),
		SessionsDir: sessions,
	}, nil
}

// SessionDBFile maps a validated session name to its sqlite file path.
func (p Paths) SessionDBFile(session string) (string, error) {
	if err := ValidateSessionName(session); err != nil {
		return "", err
	}

	return filepath.Join(p.SessionsDir, session+".db"), nil
}
