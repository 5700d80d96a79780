package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smhanov/librarian"
	"github.com/smhanov/librarian/corpus"
	"github.com/smhanov/librarian/internal/config"
	"github.com/smhanov/librarian/llm"
	"github.com/smhanov/librarian/logger"
	"github.com/smhanov/librarian/metrics"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once the root command has loaded
// the configuration.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	fs           afero.Fs
	newGenerator func(ctx context.Context, cfg llm.Config) (librarian.GenerationClient, error)

	configPath string
	cfg        *config.Config
	log        logger.Logger
	registry   *prometheus.Registry
	collector  *metrics.Collector
	server     *http.Server
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		fs:     afero.NewOsFs(),
		newGenerator: func(ctx context.Context, cfg llm.Config) (librarian.GenerationClient, error) {
			return llm.New(ctx, cfg)
		},
	}
}

// flagKeys maps persistent flags to config keys. Only flags set on the
// command line override the other sources.
var flagKeys = map[string]string{ //nolint:gochecknoglobals
	"corpus":       "corpus.dir",
	"provider":     "llm.provider",
	"model":        "llm.model",
	"max-rounds":   "agent.max_rounds",
	"concurrency":  "agent.concurrency",
	"log-level":    "log.level",
	"log-json":     "log.json",
	"metrics-addr": "metrics.addr",
	"debug":        "agent.debug",
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "librarian",
		Short: "Answer questions over a directory of documents",
		Long: `Librarian answers a question by repeatedly querying a corpus of text files.
Each round judges every document for relevance, extracts cited evidence and
writes an analysis, until the model has enough to answer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	f.String("corpus", "", "directory holding the documents")
	f.String("provider", "", "model provider: googleai, openai, anthropic or ollama")
	f.String("model", "", "model name")
	f.Int("max-rounds", 0, "maximum retrieval rounds per question")
	f.Int("concurrency", 0, "parallel generation calls per stage")
	f.String("log-level", "", "debug, info, warn, error or disabled")
	f.Bool("log-json", false, "log as JSON")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.Bool("debug", false, "log every prompt and response")

	cmd.AddCommand(newAskCmd(a), newListCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	overrides := make(map[string]any)
	flags := cmd.Flags()
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		overrides[key] = flag.Value.String()
	}
	cfg, err := config.NewLoader(a.fs).Load(a.configPath, overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Output:     a.stderr,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})

	a.registry = prometheus.NewRegistry()
	a.collector = metrics.New(a.registry)
	if cfg.Metrics.Addr != "" {
		return a.serveMetrics(cfg.Metrics.Addr)
	}
	return nil
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server stopped", "error", err)
		}
	}()
	a.log.Info("Serving metrics", "addr", ln.Addr().String())
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

func (a *app) corpus() *corpus.FS {
	return corpus.NewFS(a.fs, a.cfg.Corpus.Dir,
		corpus.WithInclude(a.cfg.Corpus.Include...),
		corpus.WithExclude(a.cfg.Corpus.Exclude...),
	)
}
