package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/k6streams/errext"
	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
	"github.com/liuxd6825/k6streams/streams/sources"
)

type cmdCSV struct {
	gs    *state.GlobalState
	comma string
}

func (c *cmdCSV) run(cmd *cobra.Command, args []string) error {
	conf, err := consolidateConfig(c.gs, cmd.Flags())
	if err != nil {
		return err
	}

	opts := sources.CSVOptions{Header: conf.CSVHeader.Bool}
	if c.comma != "" {
		runes := []rune(c.comma)
		if len(runes) != 1 {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("invalid delimiter %q, it must be a single character", c.comma), exitcodes.InvalidConfig)
		}
		opts.Comma = runes[0]
	}

	var sum summary
	err = run(c.gs, conf, func(rt *streamRuntime) (*promises.Promise[struct{}], func(error), error) {
		d, err := sources.ParseDecompression(conf.Decompress.String)
		if err != nil {
			return nil, nil, err
		}
		r, err := openInput(c.gs, args[0], d)
		if err != nil {
			return nil, nil, err
		}

		src := sources.CSV(rt, r, opts)
		stream, err := streams.NewReadableStream(rt, throttle(rt, src.Source()), strategy[[]string](conf))
		if err != nil {
			return nil, nil, err
		}
		reader, err := stream.GetReader()
		if err != nil {
			return nil, nil, err
		}

		encoder := json.NewEncoder(c.gs.Stdout)
		done := streams.ForEach(reader, func(record []string) error {
			if err := encoder.Encode(recordValue(src.Header(), record)); err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.OutputFailed)
			}
			var n int
			for _, field := range record {
				n += len(field)
			}
			sum.add(n)
			return nil
		})
		cancel := func(reason error) { reader.Cancel(reason) }
		return done, cancel, nil
	})

	sum.print(c.gs, args[0])
	return err
}

// recordValue returns the JSON value a record is printed as: an object keyed
// by the column names if there is a header, an array otherwise. Fields without
// a column name are keyed by their index.
func recordValue(header, record []string) any {
	if header == nil {
		return record
	}

	obj := make(map[string]string, len(record))
	for i, field := range record {
		if i < len(header) {
			obj[header[i]] = field
		} else {
			obj[fmt.Sprint(i)] = field
		}
	}
	return obj
}

func getCmdCSV(gs *state.GlobalState) *cobra.Command {
	c := &cmdCSV{gs: gs}

	cmd := &cobra.Command{
		Use:   "csv FILE",
		Short: "Stream the records of a CSV file as JSON",
		Long: `Stream the records of a CSV file to the standard output, one JSON value per line.

With a header, which is the default, each record is printed as an object keyed
by the column names. Without one, records are printed as arrays of fields.`,
		Example: `
  # Convert a semicolon separated file without a header
  k6streams csv --csv-header=false --comma ';' data.csv`[1:],
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	cmd.Flags().AddFlagSet(configFlagSet())
	cmd.Flags().Bool("csv-header", true, "the first record holds the column names")
	cmd.Flags().StringVar(&c.comma, "comma", "", "field delimiter, a comma if not set")

	return cmd
}
