// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wtlog is the logging seam used across the webtransport packages.
//
// It exists so that session and codec code never takes a hard dependency on
// a concrete logging library; callers that want their own sink can implement
// Logger themselves. The default implementation is backed by zerolog.
package wtlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the narrow logging surface the webtransport packages use for
// debug traces: swallowed GREASE/unknown payloads, capsule parse failures,
// and other events that are not protocol errors but are worth a trace.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	WithPrefix(prefix string) Logger
}

type zeroLogger struct {
	logger zerolog.Logger
	prefix string
}

// New returns a Logger that writes to w at the given level.
func New(w io.Writer, level zerolog.Level) Logger {
	return &zeroLogger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// DefaultLogger writes Info and higher to stderr; Debug traces are dropped.
// Use New for another level or NewNop to discard everything.
var DefaultLogger Logger = New(os.Stderr, zerolog.InfoLevel)

// NewNop returns a Logger that discards everything, useful in tests.
func NewNop() Logger {
	return New(io.Discard, zerolog.Disabled)
}

func (l *zeroLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(l.prefix+format, args...)
}

func (l *zeroLogger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(l.prefix+format, args...)
}

func (l *zeroLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(l.prefix+format, args...)
}

func (l *zeroLogger) WithPrefix(prefix string) Logger {
	return &zeroLogger{logger: l.logger, prefix: l.prefix + prefix}
}
