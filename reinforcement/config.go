package reinforcement

import (
	"context"
	"fmt"
	"time"

	"ptzcam/environment"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the config document envelope: a kind and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the rollout parameters kept outside of code: which environment
// to build, how the agent acts, how long to run, and free-form hyper-parameters.
// Keys are snake_case since viper lowercases everything it reads.
type TrainingConfig struct {
	Environment environment.Config `yaml:"environment"`
	// Policy is one of the policy names in policy.go.
	Policy string `yaml:"policy"`
	// Episodes is the total number of episodes across all workers.
	Episodes int `yaml:"episodes"`
	// MaxSteps caps each episode; synthetic episodes never terminate on their own.
	MaxSteps int `yaml:"max_steps"`
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyper_params"`
	// TrainingDeadline is a duration after which rollout stops.
	TrainingDeadline map[string]string `yaml:"training_deadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// DefaultTrainingConfig runs a short random-policy rollout over the default synthetic grid.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		Environment: environment.DefaultConfig(),
		Policy:      RANDOM,
		Episodes:    16,
		MaxSteps:    200,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// DEFAULT_EPSILON is the exploration rate of the epsilon-greedy policy when the
// "epsilon" hyper-parameter is absent.
const DEFAULT_EPSILON = 0.1

// Epsilon is the exploration rate for the epsilon-greedy policy.
func (cfg *TrainingConfig) Epsilon() float64 {
	return cfg.GetHyperParamOrDefault("epsilon", DEFAULT_EPSILON)
}

// Validate checks the rollout parameters and the environment config.
func (cfg *TrainingConfig) Validate() error {
	if cfg.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", cfg.Episodes)
	}
	if cfg.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", cfg.MaxSteps)
	}
	if _, err := NewPolicy(cfg.Policy, cfg.Epsilon(), nil); err != nil {
		return err
	}
	return cfg.Environment.Validate()
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a {kind, def} document with viper and decodes def over the defaults.
// Fields missing from def keep their DefaultTrainingConfig values.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if outerConfig.Kind != CONFIG_KIND {
		return nil, fmt.Errorf("config %s: unsupported kind %q, want %q", path, outerConfig.Kind, CONFIG_KIND)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultTrainingConfig()
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return innerConfig, nil
}

// CONFIG_KIND is the only document kind FromYaml accepts.
const CONFIG_KIND = "ptz-rollout"
