// Package settings loads engine settings from layered sources:
// embedded defaults, an optional strata.toml in the XDG config
// directory, an optional strata.toml in the workspace, and STRATA_
// environment variables. Later layers override earlier ones.
package settings

import (
	_ "embed"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/strata/pkg/errors"
	"github.com/arthur-debert/strata/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultSettings []byte

const (
	// EnvPrefix namespaces the environment variables read by Load
	EnvPrefix = "STRATA_"

	// AppDirName is the subdirectory used under the XDG config home
	AppDirName = "strata"

	// FileName is the settings file looked up in the XDG config
	// directory and the workspace root
	FileName = "strata.toml"
)

// Settings is the fully resolved engine configuration
type Settings struct {
	Resolver  ResolverSettings `koanf:"resolver"`
	Selectors SelectorSettings `koanf:"selectors"`
	Project   ProjectSettings  `koanf:"project"`
	Logging   LoggingSettings  `koanf:"logging"`
}

// ResolverSettings tunes the resolution run
type ResolverSettings struct {
	// Workers bounds per-package parallelism; 0 means one per CPU
	Workers int `koanf:"workers"`
	// Strict aborts the run on the first package error instead of
	// collecting errors and continuing
	Strict  bool          `koanf:"strict"`
	Timeout time.Duration `koanf:"timeout"`
}

// SelectorSettings names the selectors document and the fallback
// indirect-selection mode for flat selector input
type SelectorSettings struct {
	File     string `koanf:"file"`
	Indirect string `koanf:"indirect"`
}

// ProjectSettings names the per-package override file and the root
// scope of the configuration tree
type ProjectSettings struct {
	File string `koanf:"file"`
	Root string `koanf:"root"`
}

// LoggingSettings carries the log verbosity (0 = warn and up)
type LoggingSettings struct {
	Verbosity int `koanf:"verbosity"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, stderrors.New("not implemented")
}

// Load resolves settings for a workspace. A missing settings file at
// any layer is not an error; a present but malformed one is.
func Load(workspaceDir string) (*Settings, error) {
	return LoadWithOverrides(workspaceDir, nil)
}

// LoadWithOverrides resolves settings and applies caller-supplied
// values on top of every other layer. Keys are dot-delimited, e.g.
// "resolver.workers".
func LoadWithOverrides(workspaceDir string, overrides map[string]interface{}) (*Settings, error) {
	logger := logging.GetLogger("settings")
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultSettings}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrSettingsLoad, "loading built-in defaults")
	}

	for _, path := range settingsPaths(workspaceDir) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrSettingsLoad,
				"loading settings from %s", path)
		}
		logger.Debug().Str("path", path).Msg("Loaded settings file")
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrSettingsLoad, "loading environment")
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrSettingsLoad, "applying overrides")
		}
	}

	var s Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &s, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrSettingsLoad, "unmarshaling settings")
	}

	normalize(&s)
	return &s, nil
}

// settingsPaths lists the file layers in override order: XDG config
// first, then the workspace
func settingsPaths(workspaceDir string) []string {
	paths := []string{filepath.Join(xdg.ConfigHome, AppDirName, FileName)}
	if workspaceDir != "" {
		paths = append(paths, filepath.Join(workspaceDir, FileName))
	}
	return paths
}

// envKey maps STRATA_RESOLVER_WORKERS to resolver.workers
func envKey(s string) string {
	return strings.ReplaceAll(
		strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

func normalize(s *Settings) {
	if s.Resolver.Workers <= 0 {
		s.Resolver.Workers = runtime.NumCPU()
	}
	if s.Selectors.Indirect == "" {
		s.Selectors.Indirect = "eager"
	}
	if s.Project.Root == "" {
		s.Project.Root = "project"
	}
}
