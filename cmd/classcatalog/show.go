package main

import (
	"fmt"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/classcatalog/internal/catalog"
	"github.com/fyrsmithlabs/classcatalog/internal/config"
)

func newShowCmd(ro *rootOptions) *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "show <version>",
		Short: "Print the entries of a generated catalog",
		Long: `Print the entries of a generated catalog, one per line.

Examples:
  classcatalog show 3.5
  classcatalog show 3.5 --source`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ro)
			if err != nil {
				return err
			}
			f, err := readCatalog(cfg, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if withSource {
				if _, err := fmt.Fprintf(out, "# %s\n", f.Source); err != nil {
					return err
				}
			}
			for _, e := range f.Entries {
				if _, err := fmt.Fprintln(out, e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "Print the source URL from the catalog header first")
	return cmd
}

func newLinksCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "links <version>",
		Short: "Print documentation links for the entries of a generated catalog",
		Long: `Print a table mapping each entry of a generated catalog to its class
reference page under source.docs_url.

Examples:
  classcatalog links 3.4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ro)
			if err != nil {
				return err
			}
			f, err := readCatalog(cfg, args[0])
			if err != nil {
				return err
			}

			if len(f.Entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty.")
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Options(
				tablewriter.WithHeader([]string{"Class", "Documentation"}),
				tablewriter.WithRendition(
					tw.Rendition{
						Borders: tw.Border{
							Left:   tw.State(1),
							Top:    tw.State(1),
							Right:  tw.State(1),
							Bottom: tw.State(1),
						},
					},
				),
				tablewriter.WithAlignment(tw.MakeAlign(2, tw.AlignLeft)),
			)
			for _, l := range catalog.Links(cfg.Source.DocsURL, args[0], f.Entries) {
				if err := table.Append([]string{l.Entry, l.URL}); err != nil {
					return fmt.Errorf("failed to append row: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}
			return nil
		},
	}
}

// readCatalog reads the catalog generated for version under cfg.
func readCatalog(cfg *config.Config, version string) (*catalog.File, error) {
	path := filepath.Join(cfg.Output.Dir, catalog.FileName(cfg.Output.FilePrefix, version))
	f, err := catalog.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog for %s: %w", version, err)
	}
	return f, nil
}
