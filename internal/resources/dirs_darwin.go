//go:build darwin

package resources

import "path/filepath"

func platformDirs(home string) []string {
	dirs := []string{"/Library/Services"}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, "Library", "Services"))
	}
	return dirs
}
