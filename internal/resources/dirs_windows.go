//go:build windows

package resources

import (
	"os"
	"path/filepath"
)

func platformDirs(home string) []string {
	dirs := []string{`C:\Program Files\WinDivvun\spellers`}
	if appData := os.Getenv("APPDATA"); appData != "" {
		dirs = append(dirs, filepath.Join(appData, "fstspell"))
	}
	return dirs
}
