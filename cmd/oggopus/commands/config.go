package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggopus/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context selects the storage backend stream paths resolve against, the
seek index directory and extractor options, similar to kubectl's context
management.

Configuration is stored in ~/.oggopus/oggopus/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a context with the specified name, replacing any existing one.

Example:
  oggopus config add-context local --root /srv/audio
  oggopus config add-context minio --backend s3 --bucket audio --region us-east-1 \
    --endpoint http://localhost:9000 --path-style \
    --access-key-id minio --secret-access-key minio123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		backend, _ := flags.GetString("backend")
		root, _ := flags.GetString("root")
		bucket, _ := flags.GetString("bucket")
		prefix, _ := flags.GetString("prefix")
		region, _ := flags.GetString("region")
		endpoint, _ := flags.GetString("endpoint")
		pathStyle, _ := flags.GetBool("path-style")
		accessKeyID, _ := flags.GetString("access-key-id")
		secretAccessKey, _ := flags.GetString("secret-access-key")
		indexDir, _ := flags.GetString("index-dir")
		skipMalformed, _ := flags.GetBool("skip-malformed")

		ctx := &cli.Context{
			IndexDir:      indexDir,
			SkipMalformed: skipMalformed,
		}
		if backend != cli.BackendLocal || root != "" {
			ctx.Storage = &cli.StorageConfig{
				Backend:         backend,
				Root:            root,
				Bucket:          bucket,
				Prefix:          prefix,
				Region:          region,
				Endpoint:        endpoint,
				PathStyle:       pathStyle,
				AccessKeyID:     accessKeyID,
				SecretAccessKey: secretAccessKey,
			}
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.Put(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context %q added", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.Delete(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.Use(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context [name]",
	Short: "Display a context (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := cfg.CurrentContext
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			cli.PrintInfo(cmd.OutOrStdout(), "No current context set")
			return nil
		}
		ctx, err := cfg.Get(name)
		if err != nil {
			return err
		}
		return output(cmd, maskedContext(ctx))
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if len(cfg.Contexts) == 0 {
			cli.PrintInfo(cmd.OutOrStdout(), "No contexts configured")
			return nil
		}
		list := contextList{current: cfg.CurrentContext}
		for _, name := range cfg.Names() {
			list.items = append(list.items, maskedContext(cfg.Contexts[name]))
		}
		return output(cmd, list)
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("backend", cli.BackendLocal, "storage backend: local or s3")
	f.String("root", "", "local root directory (default: paths are taken as given)")
	f.String("bucket", "", "S3 bucket")
	f.String("prefix", "", "S3 key prefix")
	f.String("region", "", "S3 region")
	f.String("endpoint", "", "S3-compatible endpoint URL")
	f.Bool("path-style", false, "use path-style bucket addressing")
	f.String("access-key-id", "", "S3 access key ID")
	f.String("secret-access-key", "", "S3 secret access key")
	f.String("index-dir", "", "seek index directory")
	f.Bool("skip-malformed", false, "skip malformed audio packets instead of failing")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	rootCmd.AddCommand(configCmd)
}

// maskedContext returns a copy of ctx safe to print.
func maskedContext(ctx *cli.Context) *cli.Context {
	out := *ctx
	if ctx.Storage != nil {
		s := *ctx.Storage
		s.SecretAccessKey = cli.MaskSecret(s.SecretAccessKey)
		out.Storage = &s
	}
	return &out
}

type contextList struct {
	current string
	items   []*cli.Context
}

func (l contextList) MarshalJSON() ([]byte, error) { return json.Marshal(l.items) }
func (l contextList) MarshalYAML() (any, error)    { return l.items, nil }

func (l contextList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"CURRENT", "NAME", "BACKEND", "LOCATION", "INDEX_DIR"}}
	for _, ctx := range l.items {
		current := ""
		if ctx.Name == l.current {
			current = "*"
		}
		location := "(working directory)"
		if s := ctx.Storage; s != nil {
			switch ctx.Backend() {
			case cli.BackendS3:
				location = fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)
			default:
				location = s.Root
			}
		}
		indexDir := ctx.IndexDir
		if indexDir == "" {
			indexDir = "(default)"
		}
		t.Append(current, ctx.Name, ctx.Backend(), location, indexDir)
	}
	return t
}
