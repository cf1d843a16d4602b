// Package export contains the command that streams the whole catalog to the configured sink.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/cmd/exec_common"
	"github.com/energia/resourcecatalog/cmd/util"
	"github.com/energia/resourcecatalog/internal/config"
	"github.com/energia/resourcecatalog/pkg/export"
)

const (
	chunkSizeFlag      = "chunk-size"
	fetchSizeFlag      = "fetch-size"
	maxConcurrencyFlag = "max-concurrency"
	failFastFlag       = "fail-fast"
	outputFlag         = "output"
)

func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish every record of the catalog to the sink in fixed-size chunks",
		Long: `Publish every record of the catalog to the sink in fixed-size chunks.

Records are streamed from the datastore, grouped into chunks and the chunks are published concurrently.
Every chunk is attempted unless --fail-fast is set, in which case the first failed chunk cancels the rest.

With --output the catalog is read into memory and written as a single JSON array instead of being published.`,
		RunE: runExport,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			flags := cmd.Flags()

			exec_common.BindDatastoreFlags(flags)
			exec_common.BindRuntimeFlags(flags)

			util.MustBindPFlag("export.chunkSize", flags.Lookup(chunkSizeFlag))
			util.MustBindEnv("export.chunkSize", "CATALOG_EXPORT_CHUNK_SIZE", "CATALOG_EXPORT_CHUNKSIZE")

			util.MustBindPFlag("export.fetchSize", flags.Lookup(fetchSizeFlag))
			util.MustBindEnv("export.fetchSize", "CATALOG_EXPORT_FETCH_SIZE", "CATALOG_EXPORT_FETCHSIZE")

			util.MustBindPFlag("export.maxConcurrency", flags.Lookup(maxConcurrencyFlag))
			util.MustBindEnv("export.maxConcurrency", "CATALOG_EXPORT_MAX_CONCURRENCY", "CATALOG_EXPORT_MAXCONCURRENCY")

			util.MustBindPFlag("export.failFast", flags.Lookup(failFastFlag))
			util.MustBindEnv("export.failFast", "CATALOG_EXPORT_FAIL_FAST", "CATALOG_EXPORT_FAILFAST")

			util.MustBindPFlag("export.output", flags.Lookup(outputFlag))
			util.MustBindEnv("export.output", "CATALOG_EXPORT_OUTPUT")
		},
	}

	defaultConfig := config.DefaultConfig()
	flags := cmd.Flags()

	exec_common.DefineDatastoreFlags(flags)
	exec_common.DefineRuntimeFlags(flags)

	flags.Int(chunkSizeFlag, defaultConfig.Export.ChunkSize, "the number of records published per message")
	flags.Int(fetchSizeFlag, defaultConfig.Export.FetchSize, "the number of records read from the datastore per round trip")
	flags.Int(maxConcurrencyFlag, defaultConfig.Export.MaxConcurrency, "the maximum number of chunks published at the same time")
	flags.Bool(failFastFlag, defaultConfig.Export.FailFast, "stop publishing after the first chunk that fails")
	flags.StringP(outputFlag, "o", defaultConfig.Export.Output, "write every record as a JSON array to this file instead of publishing ('-' for stdout)")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
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

	if cfg.Export.Output != "" {
		err = writeOutput(ctx, rt, cfg.Export.Output, cmd.OutOrStdout())
	} else {
		_, err = Run(ctx, rt)
	}
	return errors.Join(err, rt.Close())
}

func writeOutput(ctx context.Context, rt *exec_common.Runtime, path string, stdout io.Writer) error {
	if path == "-" {
		_, err := Dump(ctx, rt, stdout)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	_, err = Dump(ctx, rt, f)
	return errors.Join(err, f.Close())
}

// Dump reads every record of the runtime's datastore into memory and writes them to w as one
// JSON array. It returns the number of records written.
func Dump(ctx context.Context, rt *exec_common.Runtime, w io.Writer) (int, error) {
	exporter := export.NewExporter(rt.Datastore, rt.Sink,
		export.WithFetchSize(rt.Config.Export.FetchSize),
		export.WithLogger(rt.Logger),
	)

	payloads, err := exporter.ExportAll(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payloads); err != nil {
		return 0, fmt.Errorf("encode records: %w", err)
	}

	rt.Logger.InfoWithContext(ctx, "records written", zap.Int("records", len(payloads)))
	return len(payloads), nil
}

// Run exports the runtime's datastore to its sink.
func Run(ctx context.Context, rt *exec_common.Runtime) (export.ExportSummary, error) {
	exporter := export.NewExporter(rt.Datastore, rt.Sink,
		export.WithChunkSize(rt.Config.Export.ChunkSize),
		export.WithFetchSize(rt.Config.Export.FetchSize),
		export.WithLogger(rt.Logger),
		export.WithPublisherOptions(
			export.WithMaxConcurrency(rt.Config.Export.MaxConcurrency),
			export.WithFailFast(rt.Config.Export.FailFast),
			export.WithPublisherLogger(rt.Logger),
		),
	)

	return exporter.ExportAllToSink(ctx)
}
