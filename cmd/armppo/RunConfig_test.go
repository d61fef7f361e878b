package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samuelfneumann/armppo/agent/bc"
	"github.com/samuelfneumann/armppo/environment/envconfig"
	"github.com/samuelfneumann/armppo/solver"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultYAMLRoundTrip(t *testing.T) {
	want := DefaultRunConfig()
	want.Seed = 7
	want.BC = &BCConfig{
		Config:         bc.DefaultConfig(),
		Demonstrations: "/data/demonstrations.gob",
	}
	out, err := want.YAML()
	if err != nil {
		t.Fatal(err)
	}

	have, err := LoadRunConfig(writeConfig(t, out))
	if err != nil {
		t.Fatalf("loadrunconfig: %v", err)
	}
	want = want.withSeed()
	if !reflect.DeepEqual(have, want) {
		t.Errorf("round trip differs:\nwant(%+v)\nhave(%+v)", want, have)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `
seed: 3
env:
  environment: Pusher
  random_init:
    - {min: -0.4, max: -0.2}
    - {min: 1.1, max: 1.3}
    - {min: 0.9, max: 1.1}
    - {min: 0.7, max: 0.9}
model:
  actor_hidden: [16]
ppo:
  iterations: 7
  solver: RMSProp
bc:
  epochs: 3
  demonstrations: demos.gob
`)
	c, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("loadrunconfig: %v", err)
	}

	if c.Env.Environment != envconfig.Pusher || len(c.Env.Init) != 4 {
		t.Errorf("expected pusher defaults, have %+v", c.Env)
	}
	if len(c.Env.RandomInit) != 4 || c.Env.RandomInit[1].Max != 1.3 {
		t.Errorf("unexpected random init %v", c.Env.RandomInit)
	}
	if !reflect.DeepEqual(c.Model.ActorHidden, []int{16}) {
		t.Errorf("want actor hidden [16], have %v", c.Model.ActorHidden)
	}
	if !reflect.DeepEqual(c.Model.CriticHidden, []int{64, 32}) {
		t.Errorf("default critic hidden lost, have %v", c.Model.CriticHidden)
	}
	if c.PPO.Iterations != 7 || c.PPO.Solver != solver.RMSProp {
		t.Errorf("unexpected ppo config %+v", c.PPO)
	}
	if c.PPO.Epochs != 5 || c.PPO.Seed != 3+samplerSeed {
		t.Errorf("expected default epochs and propagated seed, have %+v",
			c.PPO)
	}
	if c.BC == nil || c.BC.Epochs != 3 || c.BC.BatchSize != 128 ||
		c.BC.Seed != 3+bcSeed {
		t.Fatalf("unexpected bc config %+v", c.BC)
	}
	if want := filepath.Join(filepath.Dir(path), "demos.gob"); c.BC.Demonstrations != want {
		t.Errorf("want demonstrations %v, have %v", want, c.BC.Demonstrations)
	}

	if _, err := c.Setup(); err != nil {
		t.Errorf("setup: %v", err)
	}
}

func TestDerivedSeedsDistinct(t *testing.T) {
	c := DefaultRunConfig()
	c.Seed = 11
	c.BC = &BCConfig{Config: bc.DefaultConfig(), Demonstrations: "demos.gob"}
	c = c.withSeed()

	seeds := map[string]uint64{
		"starter":     c.derivedSeed(starterSeed),
		"initializer": c.derivedSeed(initSeed),
		"ppo":         c.PPO.Seed,
		"bc":          c.BC.Seed,
	}
	seen := make(map[uint64]string)
	for name, seed := range seeds {
		if other, ok := seen[seed]; ok {
			t.Errorf("%v and %v share seed %v", name, other, seed)
		}
		seen[seed] = name
	}
	if c.derivedSeed(starterSeed) != c.Seed {
		t.Errorf("starter seed should be the run seed, have %v",
			c.derivedSeed(starterSeed))
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"environment": "env:\n  environment: Walker\n",
		"epochs":      "ppo:\n  epochs: 0\n",
		"activation":  "model:\n  activation: swish\n",
		"bc":          "bc:\n  epochs: 2\n",
	}
	for name, contents := range tests {
		if _, err := LoadRunConfig(writeConfig(t, contents)); err == nil {
			t.Errorf("%v: expected error", name)
		}
	}

	if _, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "error", ""} {
		if _, err := parseLevel(name); err != nil {
			t.Errorf("%q: %v", name, err)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}
