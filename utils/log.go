package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger of the attack and its commands.
var Log = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose switches between progress output (Info) and warnings only.
func SetVerbose(v bool) {
	Verbose = v
	if v {
		Log.SetLevel(logrus.InfoLevel)
	} else {
		Log.SetLevel(logrus.WarnLevel)
	}
}

// SetOutput redirects the shared logger.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}
