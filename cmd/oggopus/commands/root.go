package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
	"github.com/haivivi/oggopus/pkg/cli"
	"github.com/haivivi/oggopus/pkg/seekindex"
	"github.com/haivivi/oggopus/pkg/storage"
)

const appName = "oggopus"

var (
	// Global flags
	cfgFile      string
	contextName  string
	outputFormat string
	jqExpr       string
	verbose      bool

	// Global configuration (loaded at init time)
	globalConfig *cli.Config
	// configLoadErr stores the error from loading for deferred reporting.
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "oggopus",
	Short: "Inspect, index and seek Ogg Opus streams",
	Long: `oggopus - parse the headers of Ogg Opus streams, list their packets,
build seek indexes and enter streams at a time offset.

Streams are read from the local filesystem or from an S3-compatible bucket,
depending on the context. Configuration is stored in ~/.oggopus/oggopus/
and supports multiple contexts, similar to kubectl.

Examples:
  # Summarize a file
  oggopus probe song.opus

  # Read from a bucket
  oggopus config add-context media --backend s3 --bucket audio --region us-east-1
  oggopus -c media probe podcasts/ep1.opus

  # Index once, then jump to 1m30s
  oggopus index build song.opus
  oggopus seek song.opus --at 1m30s

  # Filter structured output with jq
  oggopus probe song.opus -o json --jq '.config.metadata'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.ParseOutputFormat(outputFormat); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.oggopus/oggopus/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json or table")
	rootCmd.PersistentFlags().StringVar(&jqExpr, "jq", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	globalConfig, configLoadErr = cli.Load(appName, cfgFile)
}

func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// getConfig returns the global configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context selected by -c, the current context, or a
// local default.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(contextName)
}

// stream is a path resolved against the context's storage.
type stream struct {
	store storage.Store
	path  string
	// source names the stream in the seek index.
	source string
}

// openStore builds the storage backend of a context.
func openStore(c *cli.Context) (storage.Store, error) {
	if c.Backend() == cli.BackendS3 {
		s := c.Storage
		client := storage.NewS3Client(storage.S3Options{
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			PathStyle:       s.PathStyle,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
		return storage.NewS3(client, s.Bucket, s.Prefix), nil
	}
	root := "/"
	if c.Storage != nil && c.Storage.Root != "" {
		root = c.Storage.Root
	}
	return storage.NewLocal(root)
}

// resolveStream maps a command line path to a store and a path within it.
// Without a configured root, local paths are taken relative to the working
// directory.
func resolveStream(c *cli.Context, p string) (*stream, error) {
	store, err := openStore(c)
	if err != nil {
		return nil, err
	}
	switch {
	case c.Backend() == cli.BackendS3:
		s := c.Storage
		return &stream{store: store, path: p, source: "s3://" + path.Join(s.Bucket, s.Prefix, p)}, nil
	case c.Storage != nil && c.Storage.Root != "":
		local := store.(*storage.Local)
		return &stream{store: store, path: p, source: filepath.Join(local.Root(), filepath.FromSlash(p))}, nil
	default:
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		return &stream{store: store, path: abs, source: abs}, nil
	}
}

// extractorOptions returns the extractor options of a context.
func extractorOptions(c *cli.Context) []oggopus.Option {
	return []oggopus.Option{
		oggopus.WithLogger(slog.Default()),
		oggopus.WithSkipMalformed(c.SkipMalformed),
	}
}

// openIndex opens the badger seek index of a context.
func openIndex(c *cli.Context) (seekindex.Store, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	dir := cfg.IndexDir(c)
	slog.Debug("opening seek index", "dir", dir)
	return seekindex.NewBadger(seekindex.BadgerOptions{Dir: dir, Logger: slog.Default()})
}

// output writes a result honoring the global --output and --jq flags.
func output(cmd *cobra.Command, result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: cli.OutputFormat(outputFormat),
		Query:  jqExpr,
		Writer: cmd.OutOrStdout(),
	})
}
