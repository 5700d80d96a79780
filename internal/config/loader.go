package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "LIBRARIAN_"

// providerKeyEnv lists the conventional API key variables of each provider,
// consulted when llm.api_key is not set.
var providerKeyEnv = map[string][]string{ //nolint:gochecknoglobals
	"googleai":  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// Loader builds a Config. The zero value is not usable; call NewLoader.
type Loader struct {
	fs        afero.Fs
	koanf     *koanf.Koanf
	validator *validator.Validate
}

// NewLoader returns a Loader that reads config files from fsys.
func NewLoader(fsys afero.Fs) *Loader {
	return &Loader{
		fs:        fsys,
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load builds the configuration. path may be empty. overrides are keyed by
// dotted path ("agent.max_rounds") and win over every other source.
func Load(path string, overrides map[string]any) (*Config, error) {
	return NewLoader(afero.NewOsFs()).Load(path, overrides)
}

// Load builds the configuration from all sources.
func (l *Loader) Load(path string, overrides map[string]any) (*Config, error) {
	l.koanf = koanf.New(".")
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if err := l.koanf.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}
	return l.unmarshalAndValidate()
}

func (l *Loader) loadFile(path string) error {
	b, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := l.koanf.Load(rawMap(data), nil); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

// loadEnvironment maps LIBRARIAN_AGENT_MAX_ROUNDS to agent.max_rounds for
// every known key. Unknown variables are ignored.
func (l *Loader) loadEnvironment() error {
	envToPath := make(map[string]string)
	for _, key := range l.koanf.Keys() {
		envToPath[EnvVar(key)] = key
	}
	err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envToPath[key], value
		},
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// EnvVar returns the environment variable for a dotted config key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if config.LLM.APIKey == "" {
		for _, name := range providerKeyEnv[config.LLM.Provider] {
			if v := os.Getenv(name); v != "" {
				config.LLM.APIKey = v
				break
			}
		}
	}

	if err := l.validator.Struct(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// rawMap is a koanf.Provider over already decoded data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
