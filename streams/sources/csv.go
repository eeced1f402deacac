package sources

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/liuxd6825/k6streams/streams"
)

// CSVOptions configures the parsing of CSV records.
type CSVOptions struct {
	// Comma is the field delimiter, ',' when zero.
	Comma rune

	// Comment, if not zero, starts lines to be ignored.
	Comment rune

	// Header signals that the first record holds the column names, and is
	// not to be enqueued.
	Header bool

	// LazyQuotes allows quotes in unquoted fields, and non-doubled quotes in quoted ones.
	LazyQuotes bool
}

// CSVSource provides the records of a CSV document as chunks.
type CSVSource struct {
	reader *csv.Reader
	opts   CSVOptions
	header []string
	source streams.UnderlyingSource[[]string]
}

// CSV creates a CSV source reading from r. Records are read off the loop
// goroutine, one per pull; records with a varying number of fields are allowed.
func CSV(vu streams.VU, r io.Reader, opts CSVOptions) *CSVSource {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.Comment = opts.Comment
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	s := &CSVSource{reader: reader, opts: opts}
	s.source = scanSource(vu, r, s.scan)
	return s
}

// Source returns the underlying source to construct a stream with.
func (s *CSVSource) Source() streams.UnderlyingSource[[]string] {
	return s.source
}

// Header returns the column names read off the first record, once the first
// record was pulled. It is nil if the header option is not set.
func (s *CSVSource) Header() []string {
	return s.header
}

func (s *CSVSource) scan() ([]string, bool, error) {
	if s.opts.Header && s.header == nil {
		header, err := s.read()
		if err != nil || header == nil {
			return nil, false, err
		}
		s.header = header
	}

	record, err := s.read()
	return record, record != nil, err
}

func (s *CSVSource) read() ([]string, error) {
	record, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return record, err
}
