// Package config builds the immutable run configuration for a release.
//
// Configuration is assembled exactly once, from the optional config record
// and the parsed command line, and then passed into the pipeline driver as
// a value. Nothing mutates it during execution.
package config

import (
	"strings"

	"github.com/spf13/viper"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/version"
)

// ConfigFileNames are the base names searched for the config record;
// viper resolves the extension (yaml, yml, json, toml).
var ConfigFileNames = []string{"shipway.config", ".shipway"}

// RunConfig is the immutable configuration for one orchestrator run.
type RunConfig struct {
	// WorkDir is the repository checkout being released.
	WorkDir string
	// Branch overrides the default-branch check in preflight. Empty means
	// detect from the remote.
	Branch string
	// Bump is the requested increment class; BumpAuto defers to the
	// commit classifier.
	Bump version.BumpType
	// Edit pauses the pipeline for changelog editing when true.
	Edit bool
	// Yes suppresses the irreversible-publish confirmation.
	Yes bool
	// DryRun routes every mutating action through the dry-run overlay.
	DryRun bool
}

// fileConfig is the recognized shape of the config record. Unrecognized
// keys are ignored, not errors.
type fileConfig struct {
	Branch string `mapstructure:"branch"`
	Bump   string `mapstructure:"bump"`
	Edit   bool   `mapstructure:"edit"`
}

// Load reads the optional config record from workDir and returns a
// RunConfig with defaults applied. A missing record yields pure defaults.
func Load(workDir string) (RunConfig, error) {
	const op = "config.Load"

	v := viper.New()
	v.SetEnvPrefix("SHIPWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("branch", "")
	v.SetDefault("bump", string(version.BumpPatch))
	v.SetDefault("edit", true)

	for _, name := range ConfigFileNames {
		v.SetConfigName(name)
		v.AddConfigPath(workDir)
		if err := v.ReadInConfig(); err == nil {
			break
		} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return RunConfig{}, sherrors.ConfigWrap(err, op, "failed to read config record")
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return RunConfig{}, sherrors.ConfigWrap(err, op, "failed to parse config record")
	}

	bump, err := version.ParseBumpType(fc.Bump)
	if err != nil {
		return RunConfig{}, sherrors.ConfigWrap(err, op, "invalid bump key in config record")
	}

	return RunConfig{
		WorkDir: workDir,
		Branch:  fc.Branch,
		Bump:    bump,
		Edit:    fc.Edit,
	}, nil
}
