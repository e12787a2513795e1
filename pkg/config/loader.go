package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// ProjectFile is the per-project configuration file.
	ProjectFile = ".arbor.toml"
	// EnvPrefix prefixes environment overrides, as in ARBOR_PIPELINE_CONCURRENCY.
	EnvPrefix = "ARBOR_"
)

// Options selects the layers Load reads.
type Options struct {
	// Root is the project directory holding .arbor.toml
	Root string
	// UserFile overrides the user config path. Empty uses the XDG config dir.
	UserFile string
	// Overrides are dotted keys set from command-line flags
	Overrides map[string]interface{}
}

// UserFile is the default location of the user's configuration,
// usually ~/.config/arbor/config.toml.
func UserFile() string {
	return filepath.Join(xdg.ConfigHome, "arbor", "config.toml")
}

// DefaultRegistryPath is used when no registry path is configured.
func DefaultRegistryPath() string {
	return filepath.Join(xdg.DataHome, "arbor", "registry")
}

// Load resolves the configuration for a project.
func Load(opts Options) (*Config, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. User and project files
	userFile := opts.UserFile
	if userFile == "" {
		userFile = UserFile()
	}
	files := []string{userFile}
	if opts.Root != "" {
		files = append(files, filepath.Join(opts.Root, ProjectFile))
	}
	for _, path := range files {
		loaded, err := loadFile(k, path)
		if err != nil {
			return nil, err
		}
		if loaded {
			logger.Debug().Str("path", path).Msg("Loaded config file")
		}
	}

	// 3. Environment
	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment")
	}

	// 4. Flags
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load flag overrides")
		}
	}

	// 5. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	// 6. Post-process
	cfg.Project.Root = opts.Root
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ARBOR_SECTION_KEY to section.key. Variables without a
// section, such as ARBOR_PROJECT, are not configuration and map to "",
// which the provider skips.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if !strings.Contains(key, "_") {
		return ""
	}
	return strings.Replace(key, "_", ".", 1)
}

func loadFile(k *koanf.Koanf, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrConfigLoad, "failed to read config %s", path).
			WithDetail("path", path)
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return false, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse config %s", path).
			WithDetail("path", path)
	}
	return true, nil
}

func postProcess(cfg *Config) error {
	if cfg.Pipeline.Concurrency < 0 {
		return errors.Newf(errors.ErrConfigParse, "pipeline.concurrency must not be negative, got %d",
			cfg.Pipeline.Concurrency).WithDetail("key", "pipeline.concurrency")
	}
	if cfg.Lifecycle.Timeout < 0 {
		return errors.New(errors.ErrConfigParse, "lifecycle.timeout must not be negative").
			WithDetail("key", "lifecycle.timeout")
	}
	if cfg.Lifecycle.Shell == "" {
		cfg.Lifecycle.Shell = "sh"
	}
	cfg.Registry.Path = paths.ExpandHome(cfg.Registry.Path)
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = DefaultRegistryPath()
	} else if !filepath.IsAbs(cfg.Registry.Path) && cfg.Project.Root != "" {
		cfg.Registry.Path = filepath.Join(cfg.Project.Root, cfg.Registry.Path)
	}
	return nil
}
