package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samuelfneumann/armppo/agent/bc"
	"github.com/samuelfneumann/armppo/agent/policy"
	"github.com/samuelfneumann/armppo/agent/ppo"
	"github.com/samuelfneumann/armppo/experiment"
	"github.com/samuelfneumann/armppo/experiment/checkpointer"
	"github.com/samuelfneumann/armppo/experiment/runstore"
	"github.com/samuelfneumann/armppo/experiment/tracker"
	"github.com/samuelfneumann/armppo/utils/progressbar"
	"github.com/spf13/cobra"
)

var (
	trainConfig          string
	trainDB              string
	trainOut             string
	trainCheckpointEvery int
	trainKeepCheckpoints bool
	trainProgress        bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a policy with PPO",
	Long: `Train a policy with PPO, optionally pretraining its actor with
behavior cloning first.

The best policy is checkpointed to <out>/best.gob, and the final policy
is saved to <out>/final.gob. Mean rewards and reversions are saved to
<out>/rewards.bin and <out>/reversions.bin. If --db is set, the run and
each of its iterations are recorded in the run store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadOrDefault(trainConfig)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt,
			syscall.SIGTERM)
		defer cancel()

		return train(ctx, c, trainOptions{
			out:             trainOut,
			db:              trainDB,
			checkpointEvery: trainCheckpointEvery,
			keepCheckpoints: trainKeepCheckpoints,
			progress:        trainProgress,
		})
	},
}

// trainOptions are the command line options of a training run
type trainOptions struct {
	out             string
	db              string
	checkpointEvery int
	keepCheckpoints bool
	progress        bool
}

// train runs the configured training run, saving its outputs to
// opts.out and recording it in the run store at opts.db if set
func train(ctx context.Context, c RunConfig, opts trainOptions) (err error) {
	out, db := opts.out, opts.db
	logger := slog.Default().With("component", "train")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	setup, err := c.Setup()
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	model, err := c.NewModel(setup)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	defer model.Close()

	var (
		store *runstore.Store
		runID string
	)
	if db != "" {
		if store, err = runstore.Open(db); err != nil {
			return fmt.Errorf("train: %w", err)
		}
		defer store.Close()

		config, err := c.YAML()
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		if runID, err = store.CreateRun(string(c.Env.Environment),
			config); err != nil {
			return fmt.Errorf("train: %w", err)
		}
		logger.Info("created run", "run_id", runID)
		defer func() {
			if finishErr := store.FinishRun(runID, err); finishErr != nil &&
				err == nil {
				err = fmt.Errorf("train: %w", finishErr)
			}
		}()
	}

	if c.BC != nil {
		if err := pretrain(ctx, model, *c.BC, out); err != nil {
			return fmt.Errorf("train: %w", err)
		}
	}

	ppoConfig := c.PPO
	ppoConfig.Logger = slog.Default()
	learner, err := ppo.New(setup.Env, model, setup.Starter, ppoConfig)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	filename := checkpointer.FixedFilename(filepath.Join(out, "best.gob"))
	if opts.keepCheckpoints {
		filename = checkpointer.FileTimer(filepath.Join(out, "best"), ".gob",
			time.Now)
	}
	best, err := checkpointer.NewNIteration(opts.checkpointEvery,
		func() checkpointer.Serializable { return learner.BestPolicy() },
		filename)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	trackers := []tracker.Tracker{
		tracker.NewMeanReward(filepath.Join(out, "rewards.bin")),
		tracker.NewReversions(filepath.Join(out, "reversions.bin")),
	}
	if store != nil {
		trackers = append(trackers, store.Tracker(runID))
	}
	exp := experiment.NewPPO(learner, trackers,
		[]checkpointer.Checkpointer{best})

	if opts.progress {
		bar := progressbar.New(os.Stdout, 40, ppoConfig.Iterations,
			time.Second)
		exp.SetProgress(bar)
		bar.Display()
		defer bar.Close()
	}

	runErr := exp.Run(ctx)
	if err := exp.Save(); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("train: %w", runErr)
	}

	if err := learner.Policy().Save(filepath.Join(out, "final.gob")); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := learner.BestPolicy().Save(filepath.Join(out, "best.gob")); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if store != nil {
		snapshots := map[string]*policy.ActorCritic{
			"best":  learner.BestPolicy(),
			"final": learner.Policy(),
		}
		for kind, p := range snapshots {
			data, err := encodePolicy(p)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			if err := store.SaveSnapshot(runID, learner.Completed(), kind,
				data); err != nil {
				return fmt.Errorf("train: %w", err)
			}
		}
	}

	logger.Info("finished training", "iterations", learner.Completed(),
		"best_mean_reward", learner.BestMeanReward())
	return nil
}

// pretrain runs behavior cloning on model and saves the result
func pretrain(ctx context.Context, model *policy.ActorCritic, c BCConfig,
	out string) error {
	demos, err := bc.LoadDemonstrations(c.Demonstrations)
	if err != nil {
		return fmt.Errorf("pretrain: %w", err)
	}

	bcConfig := c.Config
	bcConfig.Logger = slog.Default()
	learner, err := bc.New(model, bcConfig)
	if err != nil {
		return fmt.Errorf("pretrain: %w", err)
	}
	if _, err := learner.Train(ctx, demos); err != nil {
		return fmt.Errorf("pretrain: %w", err)
	}

	return model.Save(filepath.Join(out, "bc.gob"))
}

func encodePolicy(p *policy.ActorCritic) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encodepolicy: %w", err)
	}
	return buf.Bytes(), nil
}

func init() {
	trainCmd.Flags().StringVarP(&trainConfig, "config", "c", "",
		"YAML run configuration (defaults are used if empty)")
	trainCmd.Flags().StringVar(&trainDB, "db", "",
		"SQLite run store to record the run in")
	trainCmd.Flags().StringVarP(&trainOut, "out", "o", "results",
		"Output directory")
	trainCmd.Flags().IntVar(&trainCheckpointEvery, "checkpoint-every", 1,
		"Checkpoint the best policy every N iterations")
	trainCmd.Flags().BoolVar(&trainKeepCheckpoints, "keep-checkpoints", false,
		"Keep every checkpoint in a timestamped file instead of overwriting")
	trainCmd.Flags().BoolVar(&trainProgress, "progress", false,
		"Display a progress bar")
}
