package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func readJson5[T any](name string) (out T, found bool, err error) {
	contents, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return out, true, nil
}

// ReadConfig reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	ext := filepath.Ext(name)
	localName := strings.TrimSuffix(name, ext) + ".local" + ext

	out, foundDefault, err := readJson5[T](name)
	if err != nil {
		return out, err
	}
	override, foundLocal, err := readJson5[T](localName)
	if err != nil {
		return out, err
	}
	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}

	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localName)
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it goes up the filesystem from the working
// directory until the root to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return defaultOut, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}

// Load layers configuration from lowest to highest priority: `defaults`, the file
// at `path` (with its local override) and the environment. The file is optional.
func Load[T any](path string, defaults T) (T, error) {
	out := defaults

	if path != "" {
		fromFile, err := ReadConfig[T](path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("no config file", "path", path)
		case err != nil:
			return out, err
		default:
			err = mergo.Merge(&out, fromFile, mergo.WithOverride)
			if err != nil {
				return out, err
			}
		}
	}

	err := ApplyEnv(&out)
	if err != nil {
		return out, fmt.Errorf("read environment: %w", err)
	}
	return out, nil
}
