package app

import (
	"errors"
	"fmt"
)

const maxSessionNameLen = 64

var errEmptySessionName = errors.New("session name is empty")

// ValidateSessionName restricts session names to a filename-safe character set.
// Names become sqlite file paths, so anything beyond [A-Za-z0-9_-] is rejected.
func ValidateSessionName(name string) error {
	if name == "" {
		return errEmptySessionName
	}
	if len(name) > maxSessionNameLen {
		return fmt.Errorf("session name exceeds %d characters", maxSessionNameLen)
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_' || ch == '-':
		default:
			return fmt.Errorf("session name contains forbidden character %q", ch)
		}
	}

	return nil
}
