package kconfig

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
}

func TestValidateRejectsZeroSlots(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"nproc", Config{NProc: 0, NThread: 1, NCPU: 1, TickHz: 1}},
		{"nthread", Config{NProc: 1, NThread: 0, NCPU: 1, TickHz: 1}},
		{"ncpu", Config{NProc: 1, NThread: 1, NCPU: 0, TickHz: 1}},
		{"tickhz", Config{NProc: 1, NThread: 1, NCPU: 1, TickHz: 0}},
		{"max_bsem", Config{NProc: 1, NThread: 1, NCPU: 1, TickHz: 1, MaxBsem: -1}},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", c.name)
		}
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load(\"\") = %+v, want %+v", cfg, Default())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/kernelsim-config.toml"); err == nil {
		t.Fatal("expected an error loading a nonexistent file")
	}
}
