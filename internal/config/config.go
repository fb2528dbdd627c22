// Package config loads the structured TOML configuration a deployable
// engine needs beyond the bare graph: run bounds, the PRNG seed, where to
// persist diagnostics, and where (if anywhere) to publish live events.
// Grounded on pack sibling timewinder's toml.NewDecoder(r).Decode pattern,
// since the teacher itself only ever takes flags, never a config file.
package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the root of a framexpr.toml file.
type Config struct {
	Engine Engine `toml:"engine,omitempty"`
	Store  Store  `toml:"store,omitempty"`
	Notify Notify `toml:"notify,omitempty"`
}

// Engine controls the cycle driver's bounds and determinism.
type Engine struct {
	// RunLength is the last cycle solveModel advances to (spec §4.9).
	RunLength int `toml:"run_length"`
	// LookAhead is how far past RunLength a PUSH_VAR reference may reach
	// forward: it widens the upper bound a referenced cycle is clamped to
	// and the size of each dynamic result vector.
	LookAhead int `toml:"look_ahead"`
	// Seed drives the engine's PRNG (spec testable property: determinism
	// with a seeded random opcode). Zero means "unseeded" at the call
	// site's discretion — config does not itself invent one.
	Seed int64 `toml:"seed"`
}

// Store configures diagnostics persistence. DSN is empty by default,
// meaning "do not persist" — internal/store is only opened when DSN is
// set.
type Store struct {
	DSN string `toml:"dsn,omitempty"`
}

// Notify configures the optional live WebSocket broadcaster. Enabled
// defaults to false: the broadcaster is a pure observer and never starts
// unless asked to.
type Notify struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr,omitempty"`
}

// Default returns the configuration a bare `framexpr run` should use when
// no config file is given: a single cycle, no look-ahead, an arbitrary
// fixed seed, no persistence, no live notification.
func Default() Config {
	return Config{
		Engine: Engine{RunLength: 1, LookAhead: 0, Seed: 1},
	}
}

// Load decodes a TOML config from r, starting from Default() so a file
// that only overrides a few fields still gets sane values for the rest.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	return cfg, nil
}

// LoadFile opens path and decodes it via Load.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: open")
	}
	defer f.Close()
	return Load(f)
}
