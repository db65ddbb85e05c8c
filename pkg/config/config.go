// Package config persists the CLI's serial device path and human-friendly
// Circle aliases between runs. The core driver (pkg/engine, pkg/device)
// only ever addresses a Circle by its 64-bit SocketId; mapping names to
// ids is purely a front-end convenience this package provides.
package config

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/plugwise/stick/pkg/codec"
)

// Config is the persisted CLI state: the serial device last used to talk
// to a stick, and a name -> SocketId alias table.
type Config struct {
	SerialDevice string                     `cbor:"serial_device"`
	Aliases      map[string]codec.SocketId `cbor:"aliases"`
}

// Default returns an empty configuration with an initialized alias map.
func Default() Config {
	return Config{Aliases: make(map[string]codec.SocketId)}
}

// Load reads and CBOR-decodes a Config from path. A missing file is not an
// error: it returns Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := cbor.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = make(map[string]codec.SocketId)
	}
	return cfg, nil
}

// Save CBOR-encodes cfg and writes it to path, creating or truncating the
// file with owner-only permissions.
func Save(path string, cfg Config) error {
	data, err := cbor.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Resolve looks up name in the alias table, falling back to parsing name
// itself as a hex SocketId so either form works on the CLI.
func (c Config) Resolve(name string) (codec.SocketId, error) {
	if id, ok := c.Aliases[name]; ok {
		return id, nil
	}
	id, err := codec.ParseSocketID(name)
	if err != nil {
		return 0, fmt.Errorf("unknown alias and not a valid socket id: %q", name)
	}
	return id, nil
}
