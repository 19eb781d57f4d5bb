package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nosqlbench/vsmodel/pkg/config"
	"github.com/nosqlbench/vsmodel/pkg/datasource"
	"github.com/nosqlbench/vsmodel/pkg/harness"
	"github.com/nosqlbench/vsmodel/pkg/model"
	"github.com/nosqlbench/vsmodel/pkg/obs"
	"github.com/nosqlbench/vsmodel/pkg/progress"
	"github.com/nosqlbench/vsmodel/pkg/transport"
)

type runOptions struct {
	inputPath      string
	remoteURL      string
	outputPath     string
	configFile     string
	runID          string
	workers        int
	maxBytesPerSec int64
	otlpEndpoint   string
	metricsAddr    string
	logFormat      string
	silent         bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit a vector space model over an input vector file",
		Long:  "Streams an input vector collection through the analysis harness, fitting a per-dimension distribution model and writing the resulting manifest to disk.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.inputPath, "input", "i", "", "Input vector file, a JSON document {\"dimension\":D,\"vectors\":[[...]]}")
	cmd.Flags().StringVar(&opts.remoteURL, "remote-url", "", "HTTP(S) URL of a remote vector file to download before fitting (alternative to --input)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "model.json", "Path to write the fitted manifest")
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Configuration file path (default: vsmodel.yaml in ., ./config, or /etc/vsmodel)")
	cmd.Flags().StringVar(&opts.runID, "id", "run", "Identifier recorded against the fitted analyzer")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Fitting-phase worker count (0 = config default)")
	cmd.Flags().Int64Var(&opts.maxBytesPerSec, "max-bytes-per-sec", 0, "Throttle the --remote-url download to this many bytes/sec (0 = config default, which defaults to unlimited)")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint (empty disables OTLP tracing/metrics export)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Address to serve a Prometheus /metrics endpoint on (empty disables it)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "json", "Log format: json or text")
	cmd.Flags().BoolVar(&opts.silent, "silent", false, "Disable terminal progress output")

	cmd.MarkFlagsOneRequired("input", "remote-url")
	cmd.MarkFlagsMutuallyExclusive("input", "remote-url")

	return cmd
}

type jsonVectorFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

func loadJSONVectors(path string) ([][]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vsmodel: reading input: %w", err)
	}

	var doc jsonVectorFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("vsmodel: decoding input: %w", err)
	}

	return doc.Vectors, nil
}

// downloadRemoteInput fetches url into a temp file via a rate-limited,
// chunked HTTP transport and returns the temp file's path. The caller is
// responsible for removing it once done.
func downloadRemoteInput(ctx context.Context, url string, cfg config.Transport) (string, error) {
	tmp, err := os.CreateTemp("", "vsmodel-remote-*.json")
	if err != nil {
		return "", fmt.Errorf("vsmodel: creating download target: %w", err)
	}

	targetPath := tmp.Name()
	_ = tmp.Close()

	ht := transport.NewHTTPTransport(url, nil)
	ht.Limiter = cfg.RateLimiter()

	dp, err := transport.DownloadTo(ctx, ht, targetPath, true, transport.DefaultDownloadOptions())
	if err != nil {
		os.Remove(targetPath)

		return "", fmt.Errorf("vsmodel: starting download: %w", err)
	}

	if err := dp.Wait(ctx); err != nil {
		os.Remove(targetPath)

		return "", fmt.Errorf("vsmodel: downloading %s: %w", url, err)
	}

	return targetPath, nil
}

// serveMetrics starts a background HTTP server exposing providers'
// Prometheus /metrics handler at addr, returning a function that shuts it
// down. Listen failures are logged, not fatal, so a bad --metrics-addr
// doesn't abort the fitting run itself.
func serveMetrics(addr string, providers obs.Providers) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", providers.PrometheusHandler)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			providers.Logger.Warn("metrics server exited", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			providers.Logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

func runRun(parent context.Context, opts *runOptions) (runResult error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("vsmodel: loading configuration: %w", err)
	}

	obsCfg := obs.DefaultConfig()
	obsCfg.Mode = obs.ModeCLI
	obsCfg.OTLPEndpoint = opts.otlpEndpoint
	obsCfg.LogJSON = opts.logFormat != "text"
	obsCfg.PrometheusEnabled = opts.metricsAddr != ""

	providers, err := obs.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("vsmodel: initializing observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(ctx); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	if opts.metricsAddr != "" {
		stopMetrics := serveMetrics(opts.metricsAddr, providers)
		defer stopMetrics()
	}

	ctx, rootSpan := providers.Tracer.Start(ctx, "vsmodel.run")
	start := time.Now()

	defer func() {
		if runResult != nil {
			obs.RecordSpanError(rootSpan, runResult)
		}

		rootSpan.End()
	}()

	if opts.maxBytesPerSec > 0 {
		cfg.Transport.MaxBytesPerSec = opts.maxBytesPerSec
	}

	inputPath := opts.inputPath

	if opts.remoteURL != "" {
		downloadedPath, err := downloadRemoteInput(ctx, opts.remoteURL, cfg.Transport)
		if err != nil {
			return err
		}
		defer os.Remove(downloadedPath)

		inputPath = downloadedPath
	}

	vectors, err := loadJSONVectors(inputPath)
	if err != nil {
		return err
	}

	source, err := datasource.NewInMemoryRowMajor(vectors)
	if err != nil {
		return fmt.Errorf("vsmodel: building data source: %w", err)
	}

	shape := source.Shape()

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Parallelism.ResolveWorkers()
	}

	chunkSizer := cfg.Sizing.ChunkSizer()

	budgetBytes := int64(cfg.Sizing.MemoryBudgetBytes)
	if budgetBytes <= 0 {
		budgetBytes = int64(1) << 30
	}

	chunkSize, err := chunkSizer.ChunkSize(int(shape.Dimensionality), budgetBytes)
	if err != nil {
		return fmt.Errorf("vsmodel: computing chunk size: %w", err)
	}

	meter := providers.Meter
	stageMetrics, err := obs.NewStageMetrics(meter)
	if err != nil {
		return fmt.Errorf("vsmodel: building stage metrics: %w", err)
	}

	fitMetrics, err := obs.NewFitMetrics(meter)
	if err != nil {
		return fmt.Errorf("vsmodel: building fit metrics: %w", err)
	}

	numaMetrics, err := obs.NewNUMAMetrics(meter)
	if err != nil {
		return fmt.Errorf("vsmodel: building numa metrics: %w", err)
	}

	extractor := model.NewExtractor(opts.runID, cfg.Model.ModelConfig(time.Now().UnixNano()), workers)
	extractor.Observer = obs.NewModelObserver(ctx, fitMetrics, numaMetrics)

	var onProgress harness.ProgressCallback = progress.Noop
	if !opts.silent {
		onProgress = progress.NewTerminal(os.Stderr).Callback()
	}

	h := harness.New([]harness.StreamingAnalyzer{extractor}, true, onProgress)

	var results *harness.AnalysisResults

	runErr := stageMetrics.Run(ctx, providers.Tracer, "harness.run", func(ctx context.Context) error {
		r, err := h.Run(ctx, source, chunkSize)
		results = r

		return err
	})
	if runErr != nil {
		return fmt.Errorf("vsmodel: harness run: %w", runErr)
	}

	out, ok := results.Get(opts.runID)
	if !ok {
		runErr, _ := results.Err(opts.runID)

		return fmt.Errorf("vsmodel: analyzer %q did not complete: %w", opts.runID, runErr)
	}

	output, ok := out.(*model.Output)
	if !ok {
		return fmt.Errorf("vsmodel: analyzer %q returned unexpected output type %T", opts.runID, out)
	}

	output.Model.GeneratedAt = time.Now().UTC()

	if err := output.Model.Save(opts.outputPath); err != nil {
		return fmt.Errorf("vsmodel: saving manifest: %w", err)
	}

	providers.Logger.Info("vsmodel run complete",
		"vectors", shape.Cardinality,
		"dimensions", shape.Dimensionality,
		"dimension_errors", len(output.DimensionErrors),
		"duration", time.Since(start),
		"output", opts.outputPath,
		"workers", workers,
	)

	return nil
}
