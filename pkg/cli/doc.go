// Package cli provides common CLI utilities for the oggopus command-line tool.
//
// This package includes:
//   - Configuration management (contexts)
//   - Output formatting (YAML, JSON, table) with optional jq filtering
//   - Table styling
//   - Human readable durations and sizes
//
// Configuration is stored in ~/.oggopus/<app>/config.yaml, supporting
// multiple contexts similar to kubectl. A context selects where streams are
// read from (local disk or S3), where the seek index lives and how the
// extractor treats malformed packets.
//
// Example usage:
//
//	cfg, err := cli.Load("oggopus", "")
//
//	ctx, err := cfg.Resolve("")
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".metadata",
//	})
package cli
