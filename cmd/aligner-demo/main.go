package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cpstream/aligner/config"
	"github.com/cpstream/aligner/flags"
	"github.com/cpstream/aligner/gate"
	"github.com/cpstream/aligner/internal/simgate"
	oplog "github.com/cpstream/aligner/log"
	"github.com/cpstream/aligner/metrics"
)

var (
	GitCommit = ""
	GitDate   = ""
)

func main() {
	if err := run(os.Args, Main); err != nil {
		gethlog.Crit("application failed", "err", err)
	}
}

// ConfigAction is what run hands control to once a Config has been parsed
// and logging has been set up, mirroring the CLI-to-action split used
// throughout this codebase's other entrypoints so flag parsing stays
// separately testable from the binary's actual behavior.
type ConfigAction func(ctx context.Context, logger gethlog.Logger, cfg config.Config) error

func run(args []string, action ConfigAction) error {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Name = "aligner-demo"
	app.Usage = "runs a checkpoint barrier aligner over a synthetic multi-channel input gate"
	app.Flags = flags.Flags
	app.Action = func(cliCtx *cli.Context) error {
		logger, err := setupLogging(cliCtx)
		if err != nil {
			return err
		}

		cfg, err := config.NewConfig(cliCtx)
		if err != nil {
			return err
		}
		if err := cfg.Check(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return action(ctx, logger, cfg)
	}

	return app.Run(args)
}

func setupLogging(ctx *cli.Context) (gethlog.Logger, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	return logger, nil
}

// Main wires a synthetic InputGate, a BarrierAligner, and optionally a
// Prometheus metrics server together, then drains the gate until it is
// exhausted or ctx is cancelled.
func Main(ctx context.Context, logger gethlog.Logger, cfg config.Config) error {
	logger.Info("starting aligner demo", "channels", cfg.Channels, "checkpointInterval", cfg.CheckpointInterval)

	group, groupCtx := errgroup.WithContext(ctx)

	gateMetrics := metrics.New()
	if cfg.Metrics.Enabled {
		group.Go(func() error {
			err := metrics.ListenAndServe(groupCtx, gateMetrics, cfg.Metrics)
			if err != nil && groupCtx.Err() != nil {
				return nil
			}
			return err
		})
	}

	underlying, err := simgate.New(groupCtx, simgate.Config{
		Channels:           cfg.Channels,
		CheckpointInterval: cfg.CheckpointInterval,
	})
	if err != nil {
		return err
	}

	notifier := newLoggingNotifier(logger)
	aligner := gate.NewBarrierAligner(logger, notifier, gateMetrics, cfg.Channels)
	checkpointed := gate.NewCheckpointedInputGate(underlying, aligner, gateMetrics)

	if cfg.Duration > 0 {
		var timeoutCancel context.CancelFunc
		groupCtx, timeoutCancel = context.WithTimeout(groupCtx, cfg.Duration)
		defer timeoutCancel()
	}

	group.Go(func() error {
		defer checkpointed.Close()
		for {
			boe, ok, err := checkpointed.PollNext(groupCtx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			logger.Debug("emitted item", "channel", boe.Channel.ChannelIdx, "item", boe.Item.String())
		}
	})

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		return err
	}
	logger.Info("aligner demo finished", "latestCheckpointId", checkpointed.LatestCheckpointID())
	return nil
}
