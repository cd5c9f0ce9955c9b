package resources

import "os"

// DefaultDirs lists the directories searched when none are configured,
// system locations first.
func DefaultDirs() []string {
	home, _ := os.UserHomeDir()
	return platformDirs(home)
}
