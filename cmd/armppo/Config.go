package main

import (
	"fmt"

	"github.com/samuelfneumann/armppo/agent/bc"
	"github.com/samuelfneumann/armppo/environment/envconfig"
	"github.com/spf13/cobra"
)

var (
	configEnv string
	configBC  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default run configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := DefaultRunConfig()
		c.Env = envconfig.Default(envconfig.EnvName(configEnv))
		if err := c.Env.Validate(); err != nil {
			return err
		}
		if configBC {
			c.BC = &BCConfig{
				Config:         bc.DefaultConfig(),
				Demonstrations: "demonstrations.gob",
			}
		}

		out, err := c.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	configCmd.Flags().StringVarP(&configEnv, "env", "e",
		string(envconfig.Reacher), "Environment (Reacher, ReacherWall, Pusher)")
	configCmd.Flags().BoolVar(&configBC, "bc", false,
		"Include a behavior cloning section")
}
