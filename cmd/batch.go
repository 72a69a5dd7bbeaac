package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openixwty/imagewty/internal/batch"
	ierrors "github.com/openixwty/imagewty/internal/errors"
)

var batchFile string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a YAML workflow of imagewty operations",
	Long: `Batch executes a YAML-defined sequence of fetch, unpack, decrypt,
partition, and scan steps, so multi-image processing can be scripted
and repeated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchFile == "" {
			return fmt.Errorf("%w: -f <workflow file> is required", ierrors.ErrInvalidArgument)
		}

		workflow, err := batch.LoadWorkflow(batchFile)
		if err != nil {
			return err
		}

		if errs := batch.ValidateWorkflow(workflow); len(errs) > 0 {
			for _, err := range errs {
				fmt.Printf("validation error: %v\n", err)
			}
			return fmt.Errorf("workflow validation failed with %d errors", len(errs))
		}

		return batch.ExecuteWorkflow(workflow)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "workflow file to execute")

	rootCmd.AddCommand(batchCmd)
}
