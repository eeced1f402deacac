// Package log contains the logrus hooks the k6streams command can log through,
// besides its standard outputs.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AsyncHook extends logrus.Hook with a Listen method, which consumes the
// fired entries until ctx is done. Listen must be running for Fire to make progress.
type AsyncHook interface {
	logrus.Hook
	Listen(ctx context.Context)
}
