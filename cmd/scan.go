package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openixwty/imagewty/internal/config"
	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/vtscan"
)

var (
	scanInput  string
	scanAPIKey string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Check an extracted file against VirusTotal",
	Long: `Scan submits a file to VirusTotal and reports the verdict, so a
flashing workflow can check an extracted payload before trusting it. An
API key is required, via --api-key, the scan.api_key config field, or
the IMAGEWTY_SCAN_API_KEY environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanInput == "" {
			return fmt.Errorf("%w: -i <file> is required", ierrors.ErrInvalidArgument)
		}

		apiKey := scanAPIKey
		if apiKey == "" {
			apiKey = config.Instance.Scan.APIKey
		}
		if _, err := vtscan.Initialize(apiKey); err != nil {
			return err
		}

		result, err := vtscan.ScanFile(scanInput)
		if err != nil {
			return err
		}

		switch {
		case !result.Known:
			fmt.Printf("%s: uploaded for analysis (sha256 %s)\n", scanInput, result.SHA256)
			fmt.Printf("report: %s\n", result.Permalink)
		case result.Clean():
			fmt.Printf("%s: clean (0/%d engines, sha256 %s)\n", scanInput, result.TotalCount, result.SHA256)
		default:
			fmt.Printf("%s: FLAGGED by %d/%d engines (sha256 %s)\n", scanInput,
				result.PositiveCount, result.TotalCount, result.SHA256)
			fmt.Printf("report: %s\n", result.Permalink)
			return fmt.Errorf("%w: %s", ierrors.ErrScanFailed, scanInput)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanInput, "input", "i", "", "file to scan")
	scanCmd.Flags().StringVar(&scanAPIKey, "api-key", "", "VirusTotal API key")

	rootCmd.AddCommand(scanCmd)
}
