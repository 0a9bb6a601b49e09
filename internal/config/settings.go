package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"setup-capabilities/internal/errors"
)

// EnvPrefix prefixes environment variables that override settings,
// e.g. SETUP_CAPABILITIES_LOG_LEVEL=debug.
const EnvPrefix = "SETUP_CAPABILITIES_"

// Settings controls a run. Values come from defaults, then the environment,
// then command-line flags.
// - Root: directory holding capability directories. Empty means the
//   directory of the running executable.
// - Target: filesystem root config.d trees are materialized under.
// - LogLevel: one of error, warning, info, debug, trace.
// - PackageManager: apt-get compatible binary (update, install --assume-yes).
// - ServiceManager: systemctl compatible binary (enable, restart, is-active).
type Settings struct {
	Root           string `koanf:"root"`
	Target         string `koanf:"target"`
	LogLevel       string `koanf:"log_level"`
	PackageManager string `koanf:"package_manager"`
	ServiceManager string `koanf:"service_manager"`
}

func defaultSettings() map[string]any {
	return map[string]any{
		"root":            "",
		"target":          "/",
		"log_level":       "error",
		"package_manager": "apt-get",
		"service_manager": "systemctl",
	}
}

// LoadSettings layers defaults, SETUP_CAPABILITIES_* environment variables and
// overrides (typically the flags the user actually set). When Root ends up
// empty it is resolved with DefaultRoot.
func LoadSettings(overrides map[string]any) (Settings, error) {
	k := koanf.New(".")

	// Built-in defaults
	if err := k.Load(confmap.Provider(defaultSettings(), "."), nil); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfig, "loading default settings")
	}

	// SETUP_CAPABILITIES_LOG_LEVEL -> log_level
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfig, "loading environment settings")
	}

	// Flags last, so they beat the environment
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Settings{}, errors.Wrap(err, errors.ErrConfig, "loading flag settings")
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, errors.Wrap(err, errors.ErrConfig, "decoding settings")
	}

	// Capabilities default to living next to the binary
	if s.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return Settings{}, err
		}
		s.Root = root
	}
	if s.Target == "" {
		s.Target = "/"
	}
	return s, nil
}

// DefaultRoot is the directory containing the running executable, so
// capabilities can sit next to the binary.
func DefaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrConfig, "locating executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
