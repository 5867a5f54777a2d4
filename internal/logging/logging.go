// Package logging hands out prefixed charmbracelet loggers that can be
// redirected together once the command line has been parsed.
package logging

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	loggers []*log.Logger
)

// New returns a logger with the given prefix. Package loggers are created
// during init, before the output is known, so every logger handed out here
// follows later SetOutput and SetLevel calls.
func New(prefix string) *log.Logger {
	l := log.WithPrefix(prefix)
	mu.Lock()
	loggers = append(loggers, l)
	mu.Unlock()
	return l
}

// SetOutput redirects the default logger and every prefixed logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// SetLevel sets the level of the default logger and every prefixed logger.
func SetLevel(level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(level)
	for _, l := range loggers {
		l.SetLevel(level)
	}
}
