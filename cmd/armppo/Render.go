package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/armppo/agent/bc"
	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	renderConfig string
	renderPolicy string
	renderSteps  int
	renderOut    string
	renderSample bool

	demoConfig string
	demoPolicy string
	demoSteps  int
	demoOut    string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Roll out a saved policy and render each step to PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadOrDefault(renderConfig)
		if err != nil {
			return err
		}
		setup, err := c.Setup()
		if err != nil {
			return err
		}
		p, err := policy.Load(renderPolicy)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := os.MkdirAll(renderOut, 0o755); err != nil {
			return err
		}

		step, err := setup.Env.Reset()
		if err != nil {
			return err
		}
		var total float64
		for i := 0; i <= renderSteps; i++ {
			frame := filepath.Join(renderOut, fmt.Sprintf("frame%04d.png", i))
			if err := setup.Env.Render(frame); err != nil {
				return err
			}
			if i == renderSteps {
				break
			}

			state := step.State()
			var action *mat.VecDense
			if renderSample {
				_, action, err = p.SampleAction(state)
			} else {
				_, action, err = p.Greedy(state)
			}
			if err != nil {
				return err
			}
			if step, _, err = setup.Env.Step(action); err != nil {
				return err
			}
			total += step.Reward
		}

		fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames to %v, "+
			"total reward %.4f\n", renderSteps+1, renderOut, total)
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Record demonstrations of a saved policy for behavior cloning",
	Long: `Record demonstrations of a saved policy, taking its greedy action
in each state. The demonstrations can be used to pretrain a new policy
through the bc section of a run configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadOrDefault(demoConfig)
		if err != nil {
			return err
		}
		setup, err := c.Setup()
		if err != nil {
			return err
		}
		p, err := policy.Load(demoPolicy)
		if err != nil {
			return err
		}
		defer p.Close()

		expert := func(state []float64) (*mat.VecDense, error) {
			_, action, err := p.Greedy(state)
			return action, err
		}
		d, err := bc.Record(setup.Env, expert, demoSteps)
		if err != nil {
			return err
		}
		if err := d.Save(demoOut); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d demonstrations to %v\n",
			d.Len(), demoOut)
		return nil
	},
}

// loadOrDefault loads the run configuration at path, or returns the
// default configuration if path is empty
func loadOrDefault(path string) (RunConfig, error) {
	if path == "" {
		return DefaultRunConfig(), nil
	}
	return LoadRunConfig(path)
}

func init() {
	renderCmd.Flags().StringVarP(&renderConfig, "config", "c", "",
		"YAML run configuration describing the environment")
	renderCmd.Flags().StringVarP(&renderPolicy, "policy", "p", "", "Saved policy (required)")
	renderCmd.Flags().IntVarP(&renderSteps, "steps", "n", 50, "Number of steps")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "frames", "Output directory")
	renderCmd.Flags().BoolVar(&renderSample, "sample", false,
		"Sample actions instead of acting greedily")
	renderCmd.MarkFlagRequired("policy")

	demoCmd.Flags().StringVarP(&demoConfig, "config", "c", "",
		"YAML run configuration describing the environment")
	demoCmd.Flags().StringVarP(&demoPolicy, "policy", "p", "", "Saved policy (required)")
	demoCmd.Flags().IntVarP(&demoSteps, "steps", "n", 1000, "Number of steps")
	demoCmd.Flags().StringVarP(&demoOut, "out", "o", "demonstrations.gob",
		"Output file")
	demoCmd.MarkFlagRequired("policy")
}
