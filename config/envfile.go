// file: config/envfile.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that were already set when the EnvFile was created
// keep precedence; values that came from the file are refreshed on every
// Load so a reload picks up rotated keys.
type EnvFile struct {
	path      string
	required  bool
	inherited map[string]bool
}

// NewEnvFile snapshots the current environment. A missing file is only an
// error when required is set.
func NewEnvFile(path string, required bool) *EnvFile {
	inherited := make(map[string]bool)
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok {
			inherited[name] = true
		}
	}
	return &EnvFile{path: path, required: required, inherited: inherited}
}

// Load applies the file and returns how many variables it set.
func (e *EnvFile) Load() (int, error) {
	if e == nil || e.path == "" {
		return 0, nil
	}

	values, err := godotenv.Read(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !e.required {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read env file %s: %w", e.path, err)
	}

	set := 0
	for name, value := range values {
		if e.inherited[name] {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return set, fmt.Errorf("failed to set %s from env file: %w", name, err)
		}
		set++
	}
	return set, nil
}
