package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/k6streams/internal/build"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
)

func versionString() string {
	return "k6streams v" + build.FullVersion()
}

type versionCmd struct {
	gs     *state.GlobalState
	isJSON bool
}

func (c *versionCmd) run(_ *cobra.Command, _ []string) error {
	if !c.isJSON {
		_, err := fmt.Fprintln(c.gs.Stdout, versionString())
		return err
	}

	info, err := json.Marshal(build.Details())
	if err != nil {
		return fmt.Errorf("failed to marshal version details: %w", err)
	}
	_, err = fmt.Fprintln(c.gs.Stdout, string(info))
	return err
}

func getCmdVersion(gs *state.GlobalState) *cobra.Command {
	c := &versionCmd{gs: gs}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		RunE:  c.run,
	}
	cmd.Flags().BoolVar(&c.isJSON, "json", false, "if set, output version information will be in JSON format")

	return cmd
}
