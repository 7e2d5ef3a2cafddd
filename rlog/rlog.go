// Package rlog is the registry's logging facade, threaded into every
// component by constructor the same way the teacher threads blog.Logger
// through sa.SQLStorageAuthority (sa/sa.go, sa/database.go). It wraps
// github.com/go-logr/logr with a github.com/go-logr/stdr backend so the rest
// of the module depends on the logr.Logger interface, not on a concrete
// backend.
package rlog

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger is the interface every component accepts; it is exactly
// logr.Logger, aliased here so call sites don't need to import logr
// directly.
type Logger = logr.Logger

// New builds a Logger that writes to os.Stderr with the given verbosity
// (higher numbers are more verbose, per logr convention).
func New(name string, verbosity int) Logger {
	stdr.SetVerbosity(verbosity)
	base := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	return stdr.New(base).WithName(name)
}

// Discard returns a Logger that drops everything, for tests.
func Discard() Logger {
	return logr.Discard()
}
