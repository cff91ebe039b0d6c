package main

import (
	"fmt"

	"github.com/Amund211/scriptcache/internal/manifest"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a script manifest",
		Long: `Validate a script manifest without loading anything.

Exit codes:
  0 - Manifest is valid
  1 - Manifest is invalid (error details printed to stderr)`,
		RunE: runValidate,
	}

	validateCmd.Flags().StringP("file", "f", "", "path to manifest file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	return validateCmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	manifestFile, _ := cmd.Flags().GetString("file")
	entries, err := manifest.Load(manifestFile)
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest is valid!\n")
	fmt.Fprintf(out, "  Scripts: %d\n", len(entries))
	for i, entry := range entries {
		fmt.Fprintf(out, "  %d. %s: %s\n", i+1, entry.Name, entry.URL)
	}

	return nil
}
