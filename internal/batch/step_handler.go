package batch

import (
	"fmt"

	"github.com/openixwty/imagewty/internal/config"
	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/fetch"
	"github.com/openixwty/imagewty/internal/imagewty"
	"github.com/openixwty/imagewty/internal/partition"
	"github.com/openixwty/imagewty/internal/unpack"
	"github.com/openixwty/imagewty/internal/utils/fsutil"
	"github.com/openixwty/imagewty/internal/vtscan"
)

// StepHandler executes one workflow step. Results are merged into the
// workflow variables for later steps to interpolate.
type StepHandler func(step Step, variables map[string]interface{}) (map[string]interface{}, error)

func stepHandlerRegistry() map[string]StepHandler {
	return map[string]StepHandler{
		"fetch":     handleFetchStep,
		"unpack":    handleUnpackStep,
		"decrypt":   handleDecryptStep,
		"partition": handlePartitionStep,
		"scan":      handleScanStep,
	}
}

// validateStepParameters checks the required parameters for a step type
// before execution starts, so a bad workflow fails fast.
func validateStepParameters(step Step) []error {
	var errs []error

	requireString := func(key string) {
		if _, ok := step.Parameters[key].(string); !ok {
			errs = append(errs, fmt.Errorf("missing required parameter '%s'", key))
		}
	}

	switch step.Type {
	case "fetch":
		requireString("url")
		requireString("output")
	case "unpack":
		requireString("input")
		requireString("output")
	case "decrypt":
		requireString("input")
		requireString("output")
	case "partition":
		requireString("input")
	case "scan":
		requireString("input")
	}

	return errs
}

func stringParam(step Step, key string) (string, error) {
	v, ok := step.Parameters[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: step parameter '%s'", ierrors.ErrInvalidArgument, key)
	}
	return v, nil
}

func handleFetchStep(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	url, err := stringParam(step, "url")
	if err != nil {
		return nil, err
	}
	output, err := stringParam(step, "output")
	if err != nil {
		return nil, err
	}

	checksum, _ := step.Parameters["checksum"].(string)
	if err := fetch.DownloadFile(url, output, checksum); err != nil {
		return nil, err
	}
	return map[string]interface{}{"last_fetched": output}, nil
}

func handleUnpackStep(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	input, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}
	output, err := stringParam(step, "output")
	if err != nil {
		return nil, err
	}

	format := unpack.FormatUnimg
	if name, ok := step.Parameters["format"].(string); ok && name != "" {
		format, err = unpack.ParseFormat(name)
		if err != nil {
			return nil, err
		}
	}
	archive, _ := step.Parameters["archive"].(string)

	c, err := imagewty.LoadContainer(input)
	if err != nil {
		return nil, err
	}
	if err := unpack.Run(c, unpack.Options{OutDir: output, Format: format, Archive: archive}); err != nil {
		return nil, err
	}
	return map[string]interface{}{"last_unpacked": output}, nil
}

func handleDecryptStep(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	input, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}
	output, err := stringParam(step, "output")
	if err != nil {
		return nil, err
	}

	c, err := imagewty.LoadContainer(input)
	if err != nil {
		return nil, err
	}
	if err := c.DecryptToFile(output); err != nil {
		return nil, err
	}
	return map[string]interface{}{"last_decrypted": output}, nil
}

func handlePartitionStep(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	input, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}

	c, err := imagewty.LoadContainer(input)
	if err != nil {
		return nil, err
	}
	entry, ok := c.FileByFilename("sys_partition.fex")
	if !ok {
		return nil, fmt.Errorf("%w: sys_partition.fex", ierrors.ErrFileNotInImage)
	}
	data, err := c.Data(entry)
	if err != nil {
		return nil, err
	}
	table, err := partition.ParseBytes(data)
	if err != nil {
		return nil, err
	}

	if output, ok := step.Parameters["output"].(string); ok && output != "" {
		if err := fsutil.WriteFile(output, []byte(table.DumpText()), 0o644); err != nil {
			return nil, err
		}
		return map[string]interface{}{"last_partition_dump": output}, nil
	}

	fmt.Print(table.DumpText())
	return nil, nil
}

func handleScanStep(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	input, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}

	if _, err := vtscan.Initialize(config.Instance.Scan.APIKey); err != nil {
		return nil, err
	}

	result, err := vtscan.ScanFile(input)
	if err != nil {
		return nil, err
	}
	if result.Known && !result.Clean() {
		return nil, fmt.Errorf("%w: %s flagged by %d/%d engines", ierrors.ErrScanFailed,
			input, result.PositiveCount, result.TotalCount)
	}
	return map[string]interface{}{"last_scan_sha256": result.SHA256}, nil
}
