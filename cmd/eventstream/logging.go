package main

import "go.uber.org/zap"

// newLogger returns a development logger, or a warn-level production logger
// when quiet is set so that stdout stays a clean JSON-lines feed.
func newLogger(quiet bool) (*zap.Logger, error) {
	if quiet {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		return cfg.Build()
	}
	return zap.NewDevelopment()
}
