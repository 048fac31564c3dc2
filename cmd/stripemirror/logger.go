package main

import (
	"io"

	"github.com/sirupsen/logrus"
)

// newLogger builds the logger handed to every component of a run.
// Without --verbose only warnings and errors are logged; the console
// output carries the rest.
func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   !isTTY(),
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		PadLevelText:    true,
	})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
