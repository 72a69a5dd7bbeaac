// Package fetch downloads remote firmware images to a local path so the
// rest of the toolchain can treat every input as a file on disk.
package fetch

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
)

// DownloadFile downloads a file from a URL and saves it to a local
// path, optionally verifying a hex-encoded SHA-256 checksum.
func DownloadFile(url, dest string, expectedChecksum string) error {
	logger.LogInfo("downloading file", map[string]interface{}{
		"url":  url,
		"dest": dest,
	})

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", ierrors.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP status %d", ierrors.ErrDownloadFailed, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ierrors.ErrFileWriteError, err)
	}
	defer out.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ierrors.ErrFileWriteError, err)
	}

	if expectedChecksum != "" {
		actual := fmt.Sprintf("%x", hasher.Sum(nil))
		if actual != expectedChecksum {
			return fmt.Errorf("%w: expected %s, got %s", ierrors.ErrChecksumFailed, expectedChecksum, actual)
		}
	}

	logger.LogInfo("download completed", map[string]interface{}{
		"dest": dest,
	})
	return nil
}
