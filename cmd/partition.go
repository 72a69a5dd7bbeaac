package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/imagewty"
	"github.com/openixwty/imagewty/internal/partition"
	"github.com/openixwty/imagewty/internal/utils/fsutil"
)

var (
	partitionInput  string
	partitionURL    string
	partitionOutput string
	partitionFormat string
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Dump the partition table embedded in an image",
	Long: `Partition locates the sys_partition.fex file embedded in an IMAGEWTY
image, parses it, and prints the partition layout as a table or JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if partitionInput == "" && partitionURL == "" {
			return fmt.Errorf("%w: -i <input> or --url is required", ierrors.ErrInvalidArgument)
		}

		input, err := resolveInput(partitionInput, partitionURL)
		if err != nil {
			return err
		}

		c, err := imagewty.LoadContainer(input)
		if err != nil {
			return err
		}
		entry, ok := c.FileByFilename("sys_partition.fex")
		if !ok {
			return fmt.Errorf("%w: sys_partition.fex", ierrors.ErrFileNotInImage)
		}
		data, err := c.Data(entry)
		if err != nil {
			return err
		}
		table, err := partition.ParseBytes(data)
		if err != nil {
			return err
		}

		var out []byte
		switch strings.ToLower(partitionFormat) {
		case "", "text":
			out = []byte(table.DumpText())
		case "json":
			out, err = table.DumpJSON()
			if err != nil {
				return err
			}
			out = append(out, '\n')
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown format %q, falling back to text\n", partitionFormat)
			out = []byte(table.DumpText())
		}

		if partitionOutput != "" {
			return fsutil.WriteFile(partitionOutput, out, 0o644)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	partitionCmd.Flags().StringVarP(&partitionInput, "input", "i", "", "input image file")
	partitionCmd.Flags().StringVar(&partitionURL, "url", "", "download the input image from a URL instead")
	partitionCmd.Flags().StringVarP(&partitionOutput, "output", "o", "", "output file (default stdout)")
	partitionCmd.Flags().StringVar(&partitionFormat, "format", "text", "output format: text or json")

	rootCmd.AddCommand(partitionCmd)
}
