package config

import (
	"path/filepath"
	"testing"

	"github.com/plugwise/stick/pkg/codec"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.SerialDevice = "/dev/ttyUSB0"
	cfg.Aliases["kitchen"] = codec.SocketId(0x0123456789ABCDEF)

	path := filepath.Join(t.TempDir(), "config.cbor")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SerialDevice != cfg.SerialDevice {
		t.Fatalf("got device %q, want %q", got.SerialDevice, cfg.SerialDevice)
	}
	if got.Aliases["kitchen"] != cfg.Aliases["kitchen"] {
		t.Fatalf("alias round-trip mismatch: got %v, want %v", got.Aliases, cfg.Aliases)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.cbor"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Aliases == nil {
		t.Fatalf("expected an initialized alias map")
	}
}

func TestResolveAliasThenHex(t *testing.T) {
	cfg := Default()
	cfg.Aliases["kitchen"] = codec.SocketId(0x0123456789ABCDEF)

	id, err := cfg.Resolve("kitchen")
	if err != nil {
		t.Fatalf("Resolve(alias): %v", err)
	}
	if id != cfg.Aliases["kitchen"] {
		t.Fatalf("got %v, want %v", id, cfg.Aliases["kitchen"])
	}

	id, err = cfg.Resolve("0123456789ABCDEF")
	if err != nil {
		t.Fatalf("Resolve(hex): %v", err)
	}
	if id != codec.SocketId(0x0123456789ABCDEF) {
		t.Fatalf("got %v", id)
	}

	if _, err := cfg.Resolve("not-an-alias-or-hex"); err == nil {
		t.Fatalf("expected an error for an unresolvable name")
	}
}
