package config

import (
	"fmt"
	"io"
	"os"
)

// Exitf reports a fatal startup error on stderr as "<prefix>: <message>" and
// exits with status 1. Commands call it before their logger exists.
func Exitf(prefix, format string, args ...any) {
	writeExit(os.Stderr, prefix, format, args...)
	os.Exit(1)
}

func writeExit(w io.Writer, prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	fmt.Fprintln(w, msg)
}
