// Package main is the entry point of the k6streams binary.
package main

import (
	"context"

	"github.com/liuxd6825/k6streams/internal/cmd"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
)

func main() {
	cmd.ExecuteWithGlobalState(state.NewGlobalState(context.Background()))
}
