package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AngelCh415/mediaplan/internal/app"
	"github.com/AngelCh415/mediaplan/internal/config"
	"github.com/AngelCh415/mediaplan/internal/metrics"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/planner"
	"github.com/AngelCh415/mediaplan/internal/store"
)

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (config.Config, error) {
	if o.configPath == "" {
		return config.FromEnv(), nil
	}
	return config.Load(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "planctl",
		Short:         "Compute media plan budgets, fees and projected performance",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (YAML); env MEDIAPLAN_* still wins")

	cmd.AddCommand(newComputeCmd(opts), newListCmd(opts), newServeCmd(opts), newMCPCmd(opts))
	return cmd
}

type computeFlags struct {
	file    string
	plan    string
	display bool
	exclude []string

	ctrDisplay, ctrSearch, vtrVideo, conversionRate float64
}

func newComputeCmd(opts *rootOptions) *cobra.Command {
	f := &computeFlags{}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute one plan from a JSON bundle",
		Long:  "Reads a bundle (clients, plans, insertions and reference tables) and prints the plan metrics as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			b, err := readBundle(cmd.InOrStdin(), f.file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("exclude-status") {
				cfg.ExcludeStatuses = f.exclude
			}
			q := metrics.Query{Display: f.display, Overrides: f.overrides(cmd)}
			m, err := offlineService(cfg).Compute(b, f.plan, q)
			if err != nil {
				return err
			}
			if f.display {
				return printJSON(cmd.OutOrStdout(), m.Display())
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "bundle JSON file, - for stdin (required)")
	fl.StringVarP(&f.plan, "plan", "p", "", "plan id (optional when the bundle holds one plan)")
	fl.BoolVar(&f.display, "display", false, "print the rounded presentation view")
	fl.StringSliceVar(&f.exclude, "exclude-status", nil, "insertion statuses to leave out")
	fl.Float64Var(&f.ctrDisplay, "ctr-display", 0, "display CTR benchmark, percent")
	fl.Float64Var(&f.ctrSearch, "ctr-search", 0, "search CTR benchmark, percent")
	fl.Float64Var(&f.vtrVideo, "vtr-video", 0, "video VTR benchmark, percent")
	fl.Float64Var(&f.conversionRate, "conversion-rate", 0, "conversion rate benchmark, percent")
	cmd.MarkFlagRequired("file")
	return cmd
}

// overrides carries only the benchmark flags that were set, so the rest come
// from the plan, the config or the built-in table.
func (f *computeFlags) overrides(cmd *cobra.Command) models.BenchmarkOverrides {
	var o models.BenchmarkOverrides
	apply := func(name string, v float64, dst **float64) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	apply("ctr-display", f.ctrDisplay, &o.CtrDisplay)
	apply("ctr-search", f.ctrSearch, &o.CtrSearch)
	apply("vtr-video", f.vtrVideo, &o.VtrVideo)
	apply("conversion-rate", f.conversionRate, &o.ConversionRate)
	return o
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var file, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Summarize every plan in a JSON bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			b, err := readBundle(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			st := store.NewMemoryStore()
			st.Load(b)
			svc := metrics.NewService(st, serviceOptions(cfg))
			return printJSON(cmd.OutOrStdout(), svc.Summaries(metrics.Query{Statuses: metrics.StatusSet(status)}))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "bundle JSON file, - for stdin (required)")
	cmd.Flags().StringVar(&status, "status", "", "comma separated plan statuses")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			if cfg.MCPEnabled {
				out = cmd.ErrOrStderr()
			}
			return app.New(cfg, app.NewLogger(cfg, out)).Run(ctx)
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the plan tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st := store.NewMemoryStore()
			if file != "" {
				b, err := readBundle(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				st.Load(b)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return planner.ServeStdio(ctx, planner.NewServer(metrics.NewService(st, serviceOptions(cfg)), app.Version))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "bundle JSON file preloaded as stored plans")
	return cmd
}

func serviceOptions(cfg config.Config) metrics.Options {
	return metrics.Options{
		Benchmarks:      cfg.Benchmarks,
		CostTolerance:   cfg.CostTolerance,
		ExcludeStatuses: cfg.ExcludeStatuses,
	}
}

func offlineService(cfg config.Config) *metrics.Service {
	return metrics.NewService(store.NewMemoryStore(), serviceOptions(cfg))
}

func readBundle(stdin io.Reader, path string) (models.Bundle, error) {
	var r io.Reader = stdin
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return models.Bundle{}, err
		}
		defer fh.Close()
		r = fh
	}
	var b models.Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return models.Bundle{}, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	return b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
