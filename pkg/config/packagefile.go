package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/strata/pkg/errors"
)

// PackageFile is a package-local override file (.strata.toml). TOML has
// no null literal, so a package file can only set values, never clear
// them; clearing requires the YAML fragment syntax.
type PackageFile struct {
	Config map[string]interface{} `toml:"config"`
	Tags   []string               `toml:"tags"`
}

// LoadPackageFile reads and parses a package's .strata.toml
func LoadPackageFile(configPath string) (PackageFile, error) {
	logger := log.With().Str("configPath", configPath).Logger()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return PackageFile{}, errors.Wrap(err, errors.ErrConfigLoad, "failed to read package file")
	}

	var pf PackageFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return PackageFile{}, errors.Wrap(err, errors.ErrConfigParse, "failed to parse TOML")
	}

	logger.Debug().
		Int("config_keys", len(pf.Config)).
		Int("tags", len(pf.Tags)).
		Msg("Package file loaded")

	return pf, nil
}

// Node converts the override file into a configuration fragment that can
// be grafted onto the project tree as the package scope
func (p PackageFile) Node(name string) *Node {
	n := NewNode(name)
	for field, value := range p.Config {
		n.Set(field, value)
	}
	if len(p.Tags) > 0 {
		n.Set("tags", p.Tags)
	}
	return n
}
