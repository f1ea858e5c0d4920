// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rdiaglog provides the process-wide structured logger.
//
// The teacher logs through golang.org/x/tools/internal/event, a package
// that is unreachable outside the golang.org/x/tools module (Go's internal
// import-path rule). gopls's own call sites still establish the idiom this
// package follows: one short message plus key-value context at the call
// site (see internal/cache/view.go's event.Error calls). We carry that
// idiom forward on go.uber.org/zap, which several other repos in the
// example pack also reach for as their structured logger.
package rdiaglog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

// NewProduction returns a production logger: JSON encoding, info level.
func NewProduction() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewDevelopment returns a development logger: console encoding, debug
// level, stack traces on warnings.
func NewDevelopment() (*zap.Logger, error) {
	return zap.NewDevelopment()
}

// New builds a logger from a format ("json" or "console") and a level
// name (e.g. "debug", "info", "warn", "error"), the two knobs rdiagd's own
// LoggingConfig exposes. An unrecognized level falls back to whichever
// level the chosen format defaults to.
func New(format, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// WithLogger returns a context carrying logger, retrievable with From.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the logger stored in ctx, or zap.L() (the global logger,
// a no-op until replaced) if none was attached.
func From(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.L()
}

// Error logs msg at error level with err and any additional fields,
// matching the teacher's event.Error(ctx, msg, err) call shape.
func Error(ctx context.Context, msg string, err error, fields ...zap.Field) {
	From(ctx).Error(msg, append([]zap.Field{zap.Error(err)}, fields...)...)
}

// Info logs msg at info level with fields, matching the teacher's
// event.Log(ctx, msg, ...) call shape.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	From(ctx).Info(msg, fields...)
}
