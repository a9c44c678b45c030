// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/denvtool/denv/internal/activate"
)

var (
	envsJSON bool

	envsCmd = &cobra.Command{
		Use:   "envs",
		Short: "List environments active in this shell",
		Long: `List the environments active in the current process lineage, innermost
last. The listing is read from inherited state only; it has no side effects.`,
		RunE: runEnvs,
	}
)

func init() {
	envsCmd.Flags().BoolVar(&envsJSON, "json", false, "emit the listing as JSON")
}

func runEnvs(cmd *cobra.Command, _ []string) error {
	lineage := activate.ParseLineage(os.Getenv(activate.LineageVar))
	entries := lineage.Entries()

	if envsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("No active environments."))
		return nil
	}

	innermost, _ := lineage.Innermost()
	for _, e := range entries {
		marker := " "
		if e.ID == innermost.ID {
			marker = SuccessStyle.Render("*")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %s\n",
			marker,
			TitleStyle.Render(e.Name),
			CmdStyle.Render(e.ID),
			SubtitleStyle.Render(e.ActivationID),
		)
	}
	return nil
}
