package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	ierrors "github.com/openixwty/imagewty/internal/errors"
	"github.com/openixwty/imagewty/internal/imagewty"
)

var (
	decryptInput  string
	decryptURL    string
	decryptOutput string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Write a decrypted copy of an encrypted image",
	RunE: func(cmd *cobra.Command, args []string) error {
		if decryptInput == "" && decryptURL == "" {
			return fmt.Errorf("%w: -i <input> or --url is required", ierrors.ErrInvalidArgument)
		}
		if decryptOutput == "" {
			return fmt.Errorf("%w: -o <output> is required", ierrors.ErrInvalidArgument)
		}

		input, err := resolveInput(decryptInput, decryptURL)
		if err != nil {
			return err
		}

		c, err := imagewty.LoadContainer(input)
		if err != nil {
			return err
		}
		return c.DecryptToFile(decryptOutput)
	},
}

func init() {
	decryptCmd.Flags().StringVarP(&decryptInput, "input", "i", "", "input image file")
	decryptCmd.Flags().StringVar(&decryptURL, "url", "", "download the input image from a URL instead")
	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "output image file")

	rootCmd.AddCommand(decryptCmd)
}
