package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// BoxesConfig controls the annotation feature itself: whether markers
	// are turned into call-out boxes, which visual variant is used and how
	// aggressively streaming updates are batched.
	BoxesConfig struct {
		Enable             bool     `yaml:"enable"`
		Style              BoxStyle `yaml:"style" validate:"gte=0"`
		DebounceMS         int      `yaml:"debounce_ms" validate:"min=0,max=5000"`
		MinFlushIntervalMS int      `yaml:"min_flush_interval_ms" validate:"min=0,max=5000"`
	}

	// AvatarsConfig controls speaker avatar resolution.
	AvatarsConfig struct {
		LibraryPath     string `yaml:"library_path,omitempty" sanitize:"path_clean" validate:"omitempty"`
		GenerateMissing bool   `yaml:"generate_missing"`
		Size            int    `yaml:"size" validate:"min=16,max=512"`
		ScoreThreshold  int    `yaml:"score_threshold" validate:"min=0,max=100"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Boxes     BoxesConfig    `yaml:"boxes"`
		Avatars   AvatarsConfig  `yaml:"avatars"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// Debounce returns the streaming debounce as a duration.
func (c *BoxesConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// MinFlushInterval returns the minimum inter-flush interval as a duration.
func (c *BoxesConfig) MinFlushInterval() time.Duration {
	return time.Duration(c.MinFlushIntervalMS) * time.Millisecond
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a
// byte slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
