package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var lenient bool

	cmd := &cobra.Command{
		Use:   "validate [scenario files...]",
		Short: "Validate map scenario files",
		Long: `Checks that scenario files decode strictly, follow the file naming
convention and describe a consistent map: known neighbors, unique ids,
well formed access restrictions and sensible behaviour settings.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "Validating %s...\n", path)
				if _, err := checkFile(path, !lenient); err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %v\n", err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Scenario file is valid!")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenario files are invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Allow unknown fields")

	cmd.AddCommand(newSimulateCmd())
	return cmd
}
