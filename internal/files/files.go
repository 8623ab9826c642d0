// Package files holds small file-system helpers shared across the project.
package files

import "os"

// Exists returns whether the given path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
