// Package kconfig holds the boot-time sizing constants for the kernel
// core (the Go equivalent of xv6's param.h compile-time constants),
// loadable from an optional TOML boot file the way runsc loads its
// runtime config.
package kconfig

import (
	"github.com/BurntSushi/toml"
)

// Config mirrors param.h's NPROC/NTHREAD/NCPU plus the additions this
// module needs (MaxBsem, TickHz).
type Config struct {
	// NProc is the size of the fixed process table.
	NProc int `toml:"nproc"`
	// NThread is the number of thread slots per process.
	NThread int `toml:"nthread"`
	// NCPU is the number of simulated CPUs, each running its own
	// scheduler loop.
	NCPU int `toml:"ncpu"`
	// MaxBsem is the size of the binary semaphore pool.
	MaxBsem int `toml:"max_bsem"`
	// TickHz paces the simulated timer interrupt.
	TickHz int `toml:"tick_hz"`
	// LogLevel is a logrus level name ("info", "debug", ...).
	LogLevel string `toml:"log_level"`
}

// Default returns the compiled-in defaults, matching xv6's param.h
// values for NPROC/NTHREAD where the original specifies them.
func Default() Config {
	return Config{
		NProc:    64,
		NThread:  8,
		NCPU:     8,
		MaxBsem:  128,
		TickHz:   100,
		LogLevel: "info",
	}
}

// Load reads a TOML boot file, applying it on top of Default() so an
// empty or partial file still produces a usable configuration.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the core's invariants
// unsatisfiable (e.g. a process table too small to hold the init
// process).
func (c Config) Validate() error {
	if c.NProc < 1 {
		return errInvalid("nproc must be >= 1")
	}
	if c.NThread < 1 {
		return errInvalid("nthread must be >= 1")
	}
	if c.NCPU < 1 {
		return errInvalid("ncpu must be >= 1")
	}
	if c.MaxBsem < 0 {
		return errInvalid("max_bsem must be >= 0")
	}
	if c.TickHz < 1 {
		return errInvalid("tick_hz must be >= 1")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalid(msg string) error { return configError(msg) }
