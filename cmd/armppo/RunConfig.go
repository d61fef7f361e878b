package main

import (
	"fmt"
	"path/filepath"

	"github.com/samuelfneumann/armppo/agent/bc"
	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/samuelfneumann/armppo/agent/ppo"
	"github.com/samuelfneumann/armppo/environment/envconfig"
	"github.com/samuelfneumann/armppo/initwfn"
	"github.com/samuelfneumann/armppo/network"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Offsets from the run seed of each random component's seed
const (
	starterSeed uint64 = iota
	initSeed
	samplerSeed
	bcSeed
)

// RunConfig describes a complete training run. Each random component
// is seeded with its own seed derived from Seed.
type RunConfig struct {
	Seed  uint64           `yaml:"seed" mapstructure:"seed"`
	Env   envconfig.Config `yaml:"env" mapstructure:"env"`
	Model ModelConfig      `yaml:"model" mapstructure:"model"`
	PPO   ppo.Config       `yaml:"ppo" mapstructure:"ppo"`

	// BC, if set, pretrains the actor on demonstrations before PPO
	BC *BCConfig `yaml:"bc,omitempty" mapstructure:"bc"`
}

// ModelConfig describes the actor-critic architecture
type ModelConfig struct {
	ActorHidden  []int        `yaml:"actor_hidden" mapstructure:"actor_hidden"`
	CriticHidden []int        `yaml:"critic_hidden" mapstructure:"critic_hidden"`
	Activation   string       `yaml:"activation" mapstructure:"activation"`
	Init         initwfn.Type `yaml:"init" mapstructure:"init"`
	InitParam    float64      `yaml:"init_param" mapstructure:"init_param"`
}

// BCConfig configures behavior cloning pretraining
type BCConfig struct {
	bc.Config `yaml:",inline" mapstructure:",squash"`

	// Demonstrations is the path of gob encoded demonstrations
	Demonstrations string `yaml:"demonstrations" mapstructure:"demonstrations"`
}

// DefaultRunConfig returns the default run configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Env: envconfig.Default(envconfig.Reacher),
		Model: ModelConfig{
			ActorHidden:  []int{128, 64},
			CriticHidden: []int{64, 32},
			Activation:   "relu",
			Init:         initwfn.GlorotU,
			InitParam:    1.0,
		},
		PPO: ppo.DefaultConfig(),
	}
}

// LoadRunConfig reads a YAML run configuration. Keys missing from the
// file keep their default values.
func LoadRunConfig(path string) (RunConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return RunConfig{}, fmt.Errorf("loadrunconfig: %w", err)
	}

	c := DefaultRunConfig()
	if vp.IsSet("env.environment") {
		// Defaults of a different environment do not apply
		name := envconfig.EnvName(vp.GetString("env.environment"))
		c.Env = envconfig.Default(name)
	}
	if vp.IsSet("bc") {
		c.BC = &BCConfig{Config: bc.DefaultConfig()}
	}

	// Lists in the file replace the default lists instead of being
	// decoded into them
	lists := map[string]interface{}{
		"env.init":            &c.Env.Init,
		"env.target":          &c.Env.Target,
		"env.random_init":     &c.Env.RandomInit,
		"model.actor_hidden":  &c.Model.ActorHidden,
		"model.critic_hidden": &c.Model.CriticHidden,
	}
	for key, list := range lists {
		if !vp.IsSet(key) {
			continue
		}
		switch l := list.(type) {
		case *[]float64:
			*l = nil
		case *[]int:
			*l = nil
		case *[]envconfig.Interval:
			*l = nil
		}
	}
	if err := vp.Unmarshal(&c); err != nil {
		return RunConfig{}, fmt.Errorf("loadrunconfig: %w", err)
	}
	if c.BC != nil && c.BC.Demonstrations != "" &&
		!filepath.IsAbs(c.BC.Demonstrations) {
		c.BC.Demonstrations = filepath.Join(filepath.Dir(path),
			c.BC.Demonstrations)
	}

	c = c.withSeed()
	if err := c.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("loadrunconfig: %w", err)
	}
	return c, nil
}

// derivedSeed returns the seed of the component at offset
func (c RunConfig) derivedSeed(offset uint64) uint64 {
	return c.Seed + offset
}

// withSeed propagates seeds derived from the run seed to the nested
// configurations
func (c RunConfig) withSeed() RunConfig {
	c.PPO.Seed = c.derivedSeed(samplerSeed)
	if c.BC != nil {
		bcConfig := *c.BC
		bcConfig.Seed = c.derivedSeed(bcSeed)
		c.BC = &bcConfig
	}
	return c
}

// Validate checks a RunConfig for errors
func (c RunConfig) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("validate: env: %w", err)
	}
	if err := c.PPO.Validate(); err != nil {
		return fmt.Errorf("validate: ppo: %w", err)
	}
	if _, err := network.ParseActivation(c.Model.Activation); err != nil {
		return fmt.Errorf("validate: model: %w", err)
	}
	if c.BC != nil {
		if err := c.BC.Config.Validate(); err != nil {
			return fmt.Errorf("validate: bc: %w", err)
		}
		if c.BC.Demonstrations == "" {
			return fmt.Errorf("validate: bc: no demonstrations file")
		}
	}
	return nil
}

// YAML returns the configuration encoded as YAML
func (c RunConfig) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("yaml: %w", err)
	}
	return string(out), nil
}

// Setup creates the configured environment
func (c RunConfig) Setup() (*envconfig.Setup, error) {
	return c.Env.Create(c.derivedSeed(starterSeed))
}

// NewModel creates a new actor-critic for the configured environment
func (c RunConfig) NewModel(setup *envconfig.Setup) (*policy.ActorCritic,
	error) {
	act, err := network.ParseActivation(c.Model.Activation)
	if err != nil {
		return nil, fmt.Errorf("newmodel: %w", err)
	}
	init, err := initwfn.New(c.Model.Init, c.Model.InitParam,
		c.derivedSeed(initSeed))
	if err != nil {
		return nil, fmt.Errorf("newmodel: %w", err)
	}

	return policy.New(setup.Env.ObservationSpec().Len(),
		setup.ActionMap.Len(), setup.ActionMap, c.Model.ActorHidden,
		c.Model.CriticHidden, act, init.InitWFn(), c.derivedSeed(samplerSeed))
}
