// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/denvtool/denv/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect denv configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  runConfigShow,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	data, err := gotoml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	if dir, err := config.ConfigDir(); err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("# config dir: "+dir))
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
