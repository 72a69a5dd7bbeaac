package fsutil

import (
	"os"
)

// DirExists checks if a directory exists
func DirExists(path string) bool {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CreateDir creates a directory if it doesn't exist
func CreateDir(path string, perm os.FileMode) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	// Check again under lock
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return nil // Directory already exists
	}
	return os.MkdirAll(path, perm)
}

// CreateDirIfNotExists creates a directory with standard permissions if it doesn't exist
func CreateDirIfNotExists(path string) error {
	return CreateDir(path, 0755)
}

// DeleteDirRecursive removes a directory and all its contents
func DeleteDirRecursive(path string) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	// Check under lock
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil // Directory doesn't exist, nothing to do
	}
	return os.RemoveAll(path)
}

// RecreateDir removes a directory if it exists and creates it fresh. Used
// for unpack output directories, which always start empty.
func RecreateDir(path string) error {
	if err := DeleteDirRecursive(path); err != nil {
		return err
	}
	return CreateDirIfNotExists(path)
}
