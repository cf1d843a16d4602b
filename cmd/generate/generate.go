// Package generate contains the command that tops the catalog up to a target number of records.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/cmd/exec_common"
	"github.com/energia/resourcecatalog/cmd/util"
	"github.com/energia/resourcecatalog/internal/config"
	"github.com/energia/resourcecatalog/pkg/generator"
)

const (
	targetTotalFlag      = "target-total"
	batchSizeFlag        = "batch-size"
	progressIntervalFlag = "progress-interval"
	strategyFlag         = "strategy"
)

func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic records until the catalog holds the target total",
		Long: `Generate synthetic records until the catalog holds the target total.

Running it again with the same target is a no-op. Records are written in batches and a failed batch
leaves every earlier batch persisted.`,
		RunE: runGenerate,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			flags := cmd.Flags()

			exec_common.BindDatastoreFlags(flags)
			exec_common.BindRuntimeFlags(flags)

			util.MustBindPFlag("generate.targetTotal", flags.Lookup(targetTotalFlag))
			util.MustBindEnv("generate.targetTotal", "CATALOG_GENERATE_TARGET_TOTAL", "CATALOG_GENERATE_TARGETTOTAL")

			util.MustBindPFlag("generate.batchSize", flags.Lookup(batchSizeFlag))
			util.MustBindEnv("generate.batchSize", "CATALOG_GENERATE_BATCH_SIZE", "CATALOG_GENERATE_BATCHSIZE")

			util.MustBindPFlag("generate.progressInterval", flags.Lookup(progressIntervalFlag))
			util.MustBindEnv("generate.progressInterval", "CATALOG_GENERATE_PROGRESS_INTERVAL", "CATALOG_GENERATE_PROGRESSINTERVAL")

			util.MustBindPFlag("generate.strategy", flags.Lookup(strategyFlag))
			util.MustBindEnv("generate.strategy", "CATALOG_GENERATE_STRATEGY")
		},
	}

	defaultConfig := config.DefaultConfig()
	flags := cmd.Flags()

	exec_common.DefineDatastoreFlags(flags)
	exec_common.DefineRuntimeFlags(flags)

	flags.Int64(targetTotalFlag, defaultConfig.Generate.TargetTotal, "the total number of records the catalog should hold when the command finishes")
	flags.Int(batchSizeFlag, defaultConfig.Generate.BatchSize, "the number of records written per transaction")
	flags.Int64(progressIntervalFlag, defaultConfig.Generate.ProgressInterval, "log progress every time this many records have been written")
	flags.String(strategyFlag, defaultConfig.Generate.Strategy, "how batches are written ('batch-save' or 'prepared')")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := exec_common.ReadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := exec_common.NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	_, err = Run(ctx, rt)
	return errors.Join(err, rt.Close())
}

// Run generates the records missing from the runtime's datastore.
func Run(ctx context.Context, rt *exec_common.Runtime) (generator.GenerateResult, error) {
	status, err := rt.Datastore.IsReady(ctx)
	if err != nil {
		return generator.GenerateResult{}, fmt.Errorf("check datastore readiness: %w", err)
	}
	if !status.IsReady {
		return generator.GenerateResult{}, fmt.Errorf("datastore is not ready: %s", status.Message)
	}

	gen := generator.NewGenerator(rt.Datastore,
		generator.WithBatchSize(rt.Config.Generate.BatchSize),
		generator.WithProgressInterval(rt.Config.Generate.ProgressInterval),
		generator.WithStrategy(generator.Strategy(rt.Config.Generate.Strategy)),
		generator.WithLogger(rt.Logger),
	)

	res, err := gen.Generate(ctx, rt.Config.Generate.TargetTotal)
	if err != nil {
		rt.Logger.Error("generation failed", zap.Error(err))
		return res, err
	}

	return res, nil
}
