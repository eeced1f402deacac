// Package sources provides ready-made underlying sources for readable streams.
//
// Pull-based sources (FromSlice, Lines, CSV, File) only produce a chunk when
// the stream asks for one, so they honor the stream's backpressure. FromChannel
// is a push source: it enqueues every value received on its channel as soon as
// the loop gets to it.
package sources
