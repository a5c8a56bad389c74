package training

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DiscardLogger returns a logger that drops every entry. Components fall
// back to it when no logger is injected.
func DiscardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
