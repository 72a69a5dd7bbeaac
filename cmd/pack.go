package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openixwty/imagewty/internal/config"
	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/imagewty"
)

var (
	packInput     string
	packOutput    string
	packNoEncrypt bool
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a source tree into an image (not yet implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if packInput == "" {
			return fmt.Errorf("%w: -i <input directory> is required", ierrors.ErrInvalidArgument)
		}
		if packOutput == "" {
			return fmt.Errorf("%w: -o <output image> is required", ierrors.ErrInvalidArgument)
		}

		encrypt := !packNoEncrypt && !config.Instance.Pack.NoEncrypt
		return imagewty.Pack(packInput, packOutput, encrypt)
	},
}

func init() {
	packCmd.Flags().StringVarP(&packInput, "input", "i", "", "input directory")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output image file")
	packCmd.Flags().BoolVar(&packNoEncrypt, "no-encrypt", false, "write the image without RC6 encryption")

	rootCmd.AddCommand(packCmd)
}
