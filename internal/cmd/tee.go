package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/liuxd6825/k6streams/errext"
	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

// errLimitReached cancels a tee branch which was written as many lines as it was limited to.
var errLimitReached = errors.New("line limit reached")

type cmdTee struct {
	gs             *state.GlobalState
	limit1, limit2 int
}

// branchWriter writes the lines of a tee branch to its output file.
type branchWriter struct {
	path   string
	limit  int
	out    afero.File
	reader *streams.DefaultReader[string]
	sum    summary
}

func (b *branchWriter) consume() *promises.Promise[struct{}] {
	return streams.ForEach(b.reader, func(line string) error {
		if b.limit > 0 && b.sum.Chunks >= b.limit {
			return errLimitReached
		}
		if _, err := io.WriteString(b.out, line+"\n"); err != nil {
			return errext.WithExitCodeIfNone(fmt.Errorf("couldn't write to %s: %w", b.path, err), exitcodes.OutputFailed)
		}
		b.sum.add(len(line) + 1)
		return nil
	})
}

func (c *cmdTee) run(cmd *cobra.Command, args []string) error {
	conf, err := consolidateConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}

	branches := []*branchWriter{
		{path: args[1], limit: c.limit1},
		{path: args[2], limit: c.limit2},
	}
	for _, b := range branches {
		b.out, err = c.gs.FS.Create(b.path)
		if err != nil {
			return errext.WithExitCodeIfNone(fmt.Errorf("couldn't create the output: %w", err), exitcodes.OutputFailed)
		}
		defer func(b *branchWriter) { _ = b.out.Close() }(b)
	}

	err = run(c.gs, conf, func(rt *streamRuntime) (*promises.Promise[struct{}], func(error), error) {
		stream, err := lineStream(rt, args[0])
		if err != nil {
			return nil, nil, err
		}
		branch1, branch2, err := stream.Tee()
		if err != nil {
			return nil, nil, err
		}
		for i, branch := range []*streams.ReadableStream[string]{branch1, branch2} {
			branches[i].reader, err = branch.GetReader()
			if err != nil {
				return nil, nil, err
			}
		}

		done, resolve, reject := promises.New[struct{}](rt)
		pending := len(branches)
		var firstErr error
		finish := func(err error) {
			if err != nil && !errors.Is(err, errLimitReached) && firstErr == nil {
				firstErr = err
			}
			if pending--; pending > 0 {
				return
			}
			if firstErr != nil {
				reject(firstErr)
				return
			}
			resolve(struct{}{})
		}
		for _, b := range branches {
			b.consume().Then(func(struct{}) { finish(nil) }, finish)
		}

		cancel := func(reason error) {
			for _, b := range branches {
				b.reader.Cancel(reason)
			}
		}
		return done, cancel, nil
	})

	for _, b := range branches {
		b.sum.print(c.gs, b.path)
	}
	return err
}

func getCmdTee(gs *state.GlobalState) *cobra.Command {
	c := &cmdTee{gs: gs}

	cmd := &cobra.Command{
		Use:   "tee FILE OUT1 OUT2",
		Short: "Copy the lines of a file to two outputs",
		Long: `Copy the lines of a file to two output files, through two branches of a teed stream.

Each branch can be limited to a number of lines, after which it is canceled
while the other one keeps going.`,
		Args: cobra.ExactArgs(3),
		RunE: c.run,
	}
	cmd.Flags().AddFlagSet(configFlagSet())
	cmd.Flags().IntVar(&c.limit1, "limit1", 0, "maximum number of lines written to OUT1, 0 for unlimited")
	cmd.Flags().IntVar(&c.limit2, "limit2", 0, "maximum number of lines written to OUT2, 0 for unlimited")

	return cmd
}
