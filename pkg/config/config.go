// Package config loads JSON configuration files into caller-defined
// structs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load decodes the JSON file at path into v. Fields missing from the file
// keep the values v already holds, so callers set defaults first.
//
// Example:
//
//	cfg := DemoConfig{NProc: 64}
//	if err := config.Load("./sched.json", &cfg); err != nil {
//		// Handle error
//	}
func Load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string, v any) {
	if err := Load(path, v); err != nil {
		panic(err)
	}
}
