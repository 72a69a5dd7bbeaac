// Package cmd wires the imagewty command-line surface: pack, decrypt,
// unpack, partition, scan, and batch operations over Allwinner IMAGEWTY
// firmware images.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openixwty/imagewty/internal/config"
	"github.com/openixwty/imagewty/internal/fetch"
	"github.com/openixwty/imagewty/internal/logger"
)

var cfgFile string

// rootCmd represents the base CLI command
var rootCmd = &cobra.Command{
	Use:   "imagewty",
	Short: "A CLI tool for Allwinner IMAGEWTY firmware images",
	Long: `imagewty reads and writes the IMAGEWTY firmware container format used
by Allwinner SoC flashing tools such as PhoenixSuit and LiveSuit.

It can decrypt RC6-encrypted images, unpack their embedded files into a
buildable source tree with a generated image.cfg, dump the device
partition table from the embedded sys_partition.fex, and script all of
the above as batch workflows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// CLI flags can override config settings
		if cmd.Flags().Changed("debug") {
			config.Instance.Debug, _ = cmd.Flags().GetBool("debug")
		}
		if cmd.Flags().Changed("verbose") {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				config.Instance.Debug = true
			}
		}
		if cmd.Flags().Changed("log-format") {
			config.Instance.LogFormat, _ = cmd.Flags().GetString("log-format")
		}

		// If a config file was explicitly specified, reinitialize
		if cmd.Flags().Changed("config") && cfgFile != "" {
			if err := config.Initialize(cfgFile); err != nil {
				logger.LogError("error loading config file", err, map[string]interface{}{
					"config_file": cfgFile,
				})
			}
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. Any failure maps to exit code 1 with a
// single-line message on stderr.
func Execute() {
	normalizeOperationName()

	if err := rootCmd.Execute(); err != nil {
		logger.LogError("command execution failed", err, nil)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

// normalizeOperationName lowercases a recognized first argument so the
// operation names stay case-insensitive.
func normalizeOperationName() {
	if len(os.Args) < 2 {
		return
	}
	lowered := strings.ToLower(os.Args[1])
	for _, c := range rootCmd.Commands() {
		if c.Name() == lowered {
			os.Args[1] = lowered
			return
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: json or human")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// resolveInput returns the local path for an operation's input,
// downloading it to the temp directory first when a URL was given
// instead of a path.
func resolveInput(input, url string) (string, error) {
	if url == "" {
		return input, nil
	}

	tempDir := config.Instance.Pack.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}

	name := filepath.Base(url)
	if name == "" || name == "." || name == "/" {
		name = "download.img"
	}
	dest := filepath.Join(tempDir, name)
	if err := fetch.DownloadFile(url, dest, ""); err != nil {
		return "", err
	}
	return dest, nil
}
