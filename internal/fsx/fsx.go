package fsx

import (
	"os"
)

// Exists returns true when anything exists at the provided path, file or
// directory. used for sentinel markers where only presence matters.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
