//go:build !unix

package stderr

import (
	"os"

	"go.uber.org/zap"
)

// Start is a no-op where audio libraries don't write to fd 2.
func Start(*zap.Logger) error {
	return nil
}

// WriteOriginal writes to stderr.
func WriteOriginal(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

// Stop is a no-op.
func Stop() {}
