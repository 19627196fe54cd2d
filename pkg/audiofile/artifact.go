package audiofile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempPath returns a collision-free artifact path under dir. Each utterance
// and each synthesized reply gets its own path; names are never reused
// across turns.
func TempPath(dir, prefix string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.wav", prefix, uuid.NewString()))
}

// Remove deletes an artifact, tolerating a file that is already gone.
// Returns nil when the artifact no longer exists.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
