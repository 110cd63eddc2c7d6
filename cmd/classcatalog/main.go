// Package main implements the classcatalog CLI, which extracts per-version
// class name catalogs from a sparse mirror of a git repository.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/classcatalog/internal/config"
)

var (
	// version information, set via -ldflags
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	gen := &generateOptions{}

	root := &cobra.Command{
		Use:   "classcatalog",
		Short: "Generate class name catalogs from a git repository",
		Long: `classcatalog keeps a sparse, shallow mirror of a git repository and writes,
for every requested version, a catalog of the class names found in one
directory of that version.

With no configuration it mirrors the Godot engine, reads doc/classes for
versions 3.2 to 3.5 and writes godot_classes-<version>.txt to the current
directory.

Examples:
  # Generate the default catalogs
  classcatalog

  # Only regenerate 3.5, keeping going if a version fails
  classcatalog generate --version 3.5 --failure-policy fail-soft

  # Print the docs links for a generated catalog
  classcatalog links 3.4`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, ro, gen)
		},
	}
	root.PersistentFlags().StringVarP(&ro.configPath, "config", "c", "", "Config file (YAML or TOML); defaults to ./"+config.DefaultFileName+" if present")
	gen.addFlags(root)

	root.AddCommand(newGenerateCmd(ro))
	root.AddCommand(newShowCmd(ro))
	root.AddCommand(newLinksCmd(ro))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "classcatalog %s (commit %s, %s %s/%s)\n",
				version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}

// loadConfig loads configuration for a command.
func loadConfig(ro *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(ro.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
