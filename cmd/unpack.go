package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openixwty/imagewty/internal/config"
	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/imagewty"
	"github.com/openixwty/imagewty/internal/unpack"
)

var (
	unpackInput   string
	unpackURL     string
	unpackOutput  string
	unpackFormat  string
	unpackArchive string
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Unpack an image into a directory",
	Long: `Unpack extracts every file embedded in an IMAGEWTY image to a
directory and generates an image.cfg describing the extracted tree.

Two output layouts are supported: unimg (flat maintype_subtype files
with raw .hdr headers alongside) and imgrepacker (embedded filenames,
preserving directory structure).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if unpackInput == "" && unpackURL == "" {
			return fmt.Errorf("%w: -i <input> or --url is required", ierrors.ErrInvalidArgument)
		}
		if unpackOutput == "" {
			unpackOutput = config.Instance.Unpack.OutputDir
		}
		if unpackOutput == "" {
			return fmt.Errorf("%w: -o <output> is required", ierrors.ErrInvalidArgument)
		}

		formatName := unpackFormat
		if formatName == "" {
			formatName = config.Instance.Unpack.DefaultFormat
		}
		format, err := unpack.ParseFormat(formatName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: unknown format %q, falling back to unimg\n", formatName)
			format = unpack.FormatUnimg
		}

		archive := unpackArchive
		if archive == "" {
			archive = config.Instance.Unpack.Archive
		}

		input, err := resolveInput(unpackInput, unpackURL)
		if err != nil {
			return err
		}

		c, err := imagewty.LoadContainer(input)
		if err != nil {
			return err
		}
		return unpack.Run(c, unpack.Options{
			OutDir:  unpackOutput,
			Format:  format,
			Archive: strings.TrimPrefix(archive, "."),
		})
	},
}

func init() {
	unpackCmd.Flags().StringVarP(&unpackInput, "input", "i", "", "input image file")
	unpackCmd.Flags().StringVar(&unpackURL, "url", "", "download the input image from a URL instead")
	unpackCmd.Flags().StringVarP(&unpackOutput, "output", "o", "", "output directory")
	unpackCmd.Flags().StringVar(&unpackFormat, "format", "", "output layout: unimg or imgrepacker (default unimg)")
	unpackCmd.Flags().StringVar(&unpackArchive, "archive", "", "additionally archive the output tree: tar.gz, tar.bz2, or tar.xz")

	rootCmd.AddCommand(unpackCmd)
}
