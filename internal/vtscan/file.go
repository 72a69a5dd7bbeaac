package vtscan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	vt "github.com/VirusTotal/vt-go"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/logger"
	"github.com/openixwty/imagewty/internal/utils/fsutil"
)

// FileScanResult is the distilled verdict for one scanned payload.
type FileScanResult struct {
	Name          string    `json:"name"`
	SHA256        string    `json:"sha256"`
	Size          int64     `json:"size"`
	PositiveCount int       `json:"positive_count"`
	TotalCount    int       `json:"total_count"`
	ScanDate      time.Time `json:"scan_date"`
	Permalink     string    `json:"permalink"`
	Known         bool      `json:"known"`
	AnalysisID    string    `json:"analysis_id,omitempty"`
}

// Clean reports whether no engine flagged the file. A file VirusTotal
// has never seen reports Clean true with Known false; callers that need
// a hard verdict should check Known too.
func (r *FileScanResult) Clean() bool {
	return r.PositiveCount == 0
}

// HashFile computes the hex SHA-256 of a file on disk.
func HashFile(path string) (string, error) {
	mu := fsutil.GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ScanFile checks a payload against VirusTotal: a hash lookup first,
// then an upload if the file is unknown.
func ScanFile(path string) (*FileScanResult, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ierrors.ErrFileNotFound, path)
	}

	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	result, err := LookupFileByHash(hash)
	if err == nil {
		result.Name = filepath.Base(path)
		result.Size = info.Size()
		return result, nil
	}

	logger.LogInfo("file unknown to VirusTotal, uploading", map[string]interface{}{
		"file": filepath.Base(path),
		"size": info.Size(),
	})

	var scanObj *vt.Object
	uploadErr := client.executeWithRetry("file_upload:"+filepath.Base(path), func() error {
		mu := fsutil.GetPathMutex(path)
		mu.Lock()
		defer mu.Unlock()

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", ierrors.ErrFileReadError, err)
		}
		defer f.Close()

		scanner := client.vtClient.NewFileScanner()
		scanObj, err = scanner.ScanFile(f, nil)
		return err
	})
	if uploadErr != nil {
		return nil, uploadErr
	}

	analysisID := scanObj.ID()
	logger.LogInfo("file uploaded for analysis", map[string]interface{}{
		"file":        filepath.Base(path),
		"analysis_id": analysisID,
	})

	return &FileScanResult{
		Name:       filepath.Base(path),
		SHA256:     hash,
		Size:       info.Size(),
		Known:      false,
		AnalysisID: analysisID,
		Permalink:  "https://www.virustotal.com/gui/file/" + hash + "/detection",
	}, nil
}

// LookupFileByHash fetches an existing analysis report by SHA-256.
func LookupFileByHash(hash string) (*FileScanResult, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	var fileObj *vt.Object
	lookupErr := client.executeWithRetry("file_lookup:"+hash, func() error {
		var err error
		fileObj, err = client.vtClient.GetObject(vt.URL("files/%s", hash))
		return err
	})
	if lookupErr != nil {
		if strings.Contains(lookupErr.Error(), "not found") {
			return nil, fmt.Errorf("%w: %s not in VirusTotal database", ierrors.ErrFileNotFound, hash)
		}
		return nil, lookupErr
	}

	result := &FileScanResult{
		SHA256:    hash,
		Known:     true,
		Permalink: "https://www.virustotal.com/gui/file/" + hash + "/detection",
	}

	if name, err := fileObj.GetString("meaningful_name"); err == nil {
		result.Name = name
	}
	if size, err := fileObj.GetInt64("size"); err == nil {
		result.Size = size
	}
	if scanDate, err := fileObj.GetTime("last_analysis_date"); err == nil {
		result.ScanDate = scanDate
	}

	if stats, err := fileObj.Get("last_analysis_stats"); err == nil {
		if statsMap, ok := stats.(map[string]interface{}); ok {
			if malicious, ok := statsMap["malicious"].(float64); ok {
				result.PositiveCount = int(malicious)
			}
			for _, count := range statsMap {
				if n, ok := count.(float64); ok {
					result.TotalCount += int(n)
				}
			}
		}
	}

	return result, nil
}
