package osutil

import (
	"os"
	"runtime"
)

// OS type constants
const (
	Windows = "windows"
	MacOS   = "darwin"
	Linux   = "linux"
)

// GetOSType returns the current operating system type
func GetOSType() string {
	return runtime.GOOS
}

// IsWindows returns true if running on Windows
func IsWindows() bool {
	return GetOSType() == Windows
}

// IsMacOS returns true if running on macOS (Darwin)
func IsMacOS() bool {
	return GetOSType() == MacOS
}

// IsLinux returns true if running on Linux
func IsLinux() bool {
	return GetOSType() == Linux
}

// IsDevEnvironment checks if the application is running in a development
// environment based on environment variables
func IsDevEnvironment() bool {
	return os.Getenv("IMAGEWTY_ENV") == "development" ||
		os.Getenv("IMAGEWTY_DEV") == "true" ||
		os.Getenv("DEV") == "true" ||
		os.Getenv("DEBUG") == "true"
}

// GetArchitecture returns the system architecture (amd64, arm64, etc.)
func GetArchitecture() string {
	return runtime.GOARCH
}
