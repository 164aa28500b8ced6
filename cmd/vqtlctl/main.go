package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vqtlbrowser/adapters/excel"
	"vqtlbrowser/app"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/config"
	"vqtlbrowser/internal/figure"
	"vqtlbrowser/internal/logging"
	"vqtlbrowser/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "vqtlctl",
		Short:        "Inspect, export and render vQTL browser inputs without serving them",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSummaryCmd(),
		newExportCmd(),
		newRenderCmd(),
		newDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSnapshot builds the snapshot the server would serve
func loadSnapshot(ctx context.Context) (*app.Snapshot, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stderr, cfg.LogLevel, false)
	return app.NewBrowserServiceFromConfig(cfg, nil).BuildSnapshot(ctx)
}

func newSummaryCmd() *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the top associations and the display table",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), snap, markdown)
			return nil
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render tables as Markdown")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.xlsx]",
		Short: "Write associations and the display table to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := excel.NewWorkbook(snap.Associations, snap.Table).SaveAs(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [dir]",
		Short: "Write PNGs of the dosage plots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			paths, err := renderFigures(snap.Figures, args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
			}
			return nil
		},
	}
}

func newDemoCmd() *cobra.Command {
	var seed int64
	var individuals, iterations int
	var gene, dsn string
	var force bool

	cmd := &cobra.Command{
		Use:   "demo [dir|s3://bucket/prefix]",
		Short: "Generate a synthetic input set for trying the browser",
		Long: `Generate a synthetic input set for trying the browser.

The results and posterior files go to a local directory or an S3 prefix.
The genotype database is always a local SQLite file: inside the directory
by default, or --db for S3 destinations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(os.Stderr, appCfg.LogLevel, false)

			dest := args[0]
			if dsn == "" {
				if strings.HasPrefix(dest, "s3://") {
					dsn = testkit.DatabaseFile
				} else {
					dsn = filepath.Join(dest, testkit.DatabaseFile)
				}
			}

			cfg := testkit.DefaultGeneratorConfig(gene)
			cfg.Seed = seed
			cfg.Individuals = individuals
			cfg.Iterations = iterations

			start := time.Now()
			inputs, err := testkit.Generate(cmd.Context(), app.OpenerFromConfig(appCfg), dest, dsn, cfg, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "generated in %s; serve it with:\n", time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "  VQTL_RESULTS=%s \\\n", inputs.Results)
			fmt.Fprintf(out, "  VQTL_DB_DSN=%s \\\n", inputs.DatabaseDSN)
			fmt.Fprintf(out, "  VQTL_POSTERIOR=%s \\\n", inputs.Posterior)
			fmt.Fprintf(out, "  VQTL_GENE=%s go run .\n", gene)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&individuals, "individuals", 53, "Number of genotyped individuals")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "MCMC iterations per individual")
	cmd.Flags().StringVar(&gene, "gene", config.DefaultGene, "Target gene")
	cmd.Flags().StringVar(&dsn, "db", "", "SQLite file for the dosages (default <dir>/browser.db, or ./browser.db for S3)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing input set")
	return cmd
}

func writeSummary(w io.Writer, snap *app.Snapshot, markdown bool) {
	render := func(t table.Writer) {
		if markdown {
			fmt.Fprintln(w, t.RenderMarkdown())
		} else {
			fmt.Fprintln(w, t.Render())
		}
		fmt.Fprintln(w)
	}

	assoc := table.NewWriter()
	assoc.SetStyle(table.StyleLight)
	assoc.SetTitle("Top associations")
	assoc.AppendHeader(table.Row{"gene", "id", "beta", "p_beta"})
	for _, a := range snap.Associations {
		assoc.AppendRow(table.Row{a.Gene, a.ID, fmt.Sprintf("%.4g", a.Beta), fmt.Sprintf("%.3e", a.PBeta)})
	}
	render(assoc)

	display := table.NewWriter()
	display.SetStyle(table.StyleLight)
	display.SetTitle(fmt.Sprintf("Posterior summaries for %s (%d individuals)", snap.Gene, snap.Table.Len()))
	header := table.Row{"ind", "geno"}
	for _, p := range vqtl.Parameters {
		header = append(header, p.Label(), "95% CI")
	}
	display.AppendHeader(header)
	for _, r := range snap.Table.Rows() {
		row := table.Row{r.Individual, fmt.Sprintf("%.3f", r.Dosage)}
		for _, p := range vqtl.Parameters {
			s := r.Summary(p)
			row = append(row, fmt.Sprintf("%.3f", s.Mean), fmt.Sprintf("[%.3f, %.3f]", s.Lower, s.Upper))
		}
		display.AppendRow(row)
	}
	render(display)
}

func renderFigures(grid *figure.Grid, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for _, id := range grid.WiredIDs() {
		f, err := grid.Get(id)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, string(id)+".png")
		out, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := figure.RenderPNG(f, out); err != nil {
			out.Close()
			return nil, err
		}
		if err := out.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
