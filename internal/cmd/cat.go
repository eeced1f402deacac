package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/k6streams/errext"
	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

type cmdCat struct {
	gs *state.GlobalState
}

func (c *cmdCat) run(cmd *cobra.Command, args []string) error {
	conf, err := consolidateConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}

	var sum summary
	err = run(c.gs, conf, func(rt *streamRuntime) (*promises.Promise[struct{}], func(error), error) {
		stream, err := lineStream(rt, args[0])
		if err != nil {
			return nil, nil, err
		}
		reader, err := stream.GetReader()
		if err != nil {
			return nil, nil, err
		}

		done := streams.ForEach(reader, func(line string) error {
			if _, err := fmt.Fprintln(c.gs.Stdout, line); err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.OutputFailed)
			}
			sum.add(len(line) + 1)
			return nil
		})
		cancel := func(reason error) { reader.Cancel(reason) }
		return done, cancel, nil
	})

	sum.print(c.gs, args[0])
	return err
}

func getCmdCat(gs *state.GlobalState) *cobra.Command {
	c := &cmdCat{gs: gs}

	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "Stream the lines of a file to the standard output",
		Long: `Stream the lines of a file to the standard output.

The file is read through a readable stream, ahead of the output by at most
the high water mark. Compressed files are decoded according to their extension,
or the --decompress flag. Use - to read the standard input.`,
		Example: `
  # Print a compressed log
  k6streams cat access.log.zst

  # Read at most 10 lines per second off the standard input
  cat data.txt | k6streams cat --rate 10 -`[1:],
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	cmd.Flags().AddFlagSet(configFlagSet())

	return cmd
}
