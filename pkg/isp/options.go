// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called after each session milestone (optional)
	ProgressCallback ProgressCallback

	// Logger receives protocol trace output (optional)
	Logger Logger

	// Statistics accumulates transaction counters (optional)
	Statistics *Statistics

	// Retries is how many times a whole handshake or a whole flush is
	// repeated after a rejection. Single transactions are never retried.
	Retries int
}

func defaultConfig() Config {
	return Config{}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback to track session progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for protocol trace output.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithStatistics makes the programmer record counters into s.
func WithStatistics(s *Statistics) Option {
	return func(c *Config) {
		c.Statistics = s
	}
}

// WithRetries sets the number of retries for a whole handshake or flush.
//
// Example:
//
//	prog := isp.New(transport, isp.WithRetries(2))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}
