//go:build !windows && !darwin

package resources

import (
	"os"
	"path/filepath"
)

func platformDirs(home string) []string {
	dirs := []string{"/usr/share/fstspell", "/usr/local/share/fstspell"}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		dirs = append(dirs, filepath.Join(data, "fstspell"))
	} else if home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "fstspell"))
	}
	return dirs
}
