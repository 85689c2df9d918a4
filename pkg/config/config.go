// Package config loads the lflog TOML configuration: named pattern profiles
// and user-defined custom macros. The rest of the system consumes the
// already-deserialised records; nothing outside this package touches TOML.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/macros"
	"github.com/lflog/lflog/pkg/types"
)

// EnvConfigPath is the environment variable that points at the config file.
const EnvConfigPath = "LFLOG_CONFIG"

// CustomMacro is a user-defined macro kind. The pattern is spliced into the
// expanded regex verbatim as the capture body.
type CustomMacro struct {
	Name        string `toml:"name"`
	Pattern     string `toml:"pattern"`
	TypeHint    string `toml:"type_hint"`
	Description string `toml:"description"`
}

// Profile is a named, preconfigured pattern.
type Profile struct {
	Name         string        `toml:"name"`
	Pattern      string        `toml:"pattern"`
	Description  string        `toml:"description"`
	CustomMacros []CustomMacro `toml:"custom_macros"`
}

// File is the deserialised configuration document.
type File struct {
	CustomMacros []CustomMacro `toml:"custom_macros"`
	Profiles     []Profile     `toml:"profiles"`
}

// Load reads and validates a config file. Top-level custom macros are
// merged into every profile's macro list. Two profiles sharing a name is an
// error rather than a silent override.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load config "+path)
	}

	seen := make(map[string]struct{}, len(f.Profiles))
	for i := range f.Profiles {
		p := &f.Profiles[i]
		if p.Name == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "profile without a name in "+path)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, errors.New(errors.ErrorTypeConfig, "duplicate profile name: "+p.Name)
		}
		seen[p.Name] = struct{}{}
		p.CustomMacros = append(p.CustomMacros, f.CustomMacros...)
	}
	return &f, nil
}

// ResolvePath returns the config file to use: the explicit CLI path, then
// LFLOG_CONFIG, then ~/.config/lflog/config.toml when it exists.
func ResolvePath(cliPath string) (string, bool) {
	if cliPath != "" {
		return cliPath, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	if home, err := os.UserHomeDir(); err == nil {
		def := filepath.Join(home, ".config", "lflog", "config.toml")
		if _, err := os.Stat(def); err == nil {
			return def, true
		}
	}
	return "", false
}

// Profile looks up a profile by name.
func (f *File) Profile(name string) (*Profile, bool) {
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			return &f.Profiles[i], true
		}
	}
	return nil, false
}

// Macros converts the top-level custom macros for the expander.
func (f *File) Macros() ([]macros.CustomMacro, error) {
	return convertMacros(f.CustomMacros)
}

// Macros converts the profile's merged custom macros for the expander.
func (p *Profile) Macros() ([]macros.CustomMacro, error) {
	return convertMacros(p.CustomMacros)
}

func convertMacros(in []CustomMacro) ([]macros.CustomMacro, error) {
	out := make([]macros.CustomMacro, 0, len(in))
	for _, m := range in {
		if m.Name == "" || m.Pattern == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "custom macro requires name and pattern")
		}
		hint := types.TypeString
		if m.TypeHint != "" {
			var err error
			hint, err = types.ParseFieldType(m.TypeHint)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "custom macro "+m.Name)
			}
		}
		out = append(out, macros.CustomMacro{
			Name:     m.Name,
			Pattern:  m.Pattern,
			TypeHint: hint,
		})
	}
	return out, nil
}
