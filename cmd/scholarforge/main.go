// Package main provides the scholarforge binary entry point.
// ScholarForge writes long-form research reports from live web evidence,
// uploaded documents and a council of language models.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	// Register LLM providers via init()
	_ "github.com/hassan-khan-web/ScholarForge/llm/providers"

	"github.com/hassan-khan-web/ScholarForge/config"
	"github.com/hassan-khan-web/ScholarForge/formats"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/pipeline"
	"github.com/hassan-khan-web/ScholarForge/progress"
	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/hassan-khan-web/ScholarForge/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "scholarforge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Research report generator",
		Long: `ScholarForge writes long-form research reports.

It decides whether live web search is needed, gathers and scrapes sources,
plans an outline sized to the requested page count, and writes each section
either in budgeted bundles or through a consensus council of models.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics and run status on this address")

	cmd.AddCommand(
		generateCmd(g),
		formatsCmd(),
		modelsCmd(g),
		reportsCmd(g),
		configCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// setup configures logging and loads the layered configuration.
func (g *globals) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	logger := newLogger(g.logLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if g.metricsAddr != "" {
		cfg.Metrics.Addr = g.metricsAddr
	}
	return cfg, logger, nil
}

type generateOptions struct {
	topic     string
	format    string
	structure string
	pages     int
	consensus bool
	docs      []string
	out       string
	chartOut  string
}

func generateCmd(g *globals) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a research report",
		Example: `  scholarforge generate --topic "Solar System planets" --pages 7
  scholarforge generate -t "Grid-scale storage" -f business_white_paper --consensus --doc notes.pdf -o report.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			return runGenerate(cmd, cfg, logger, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Report topic (required)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format: "+strings.Join(formats.Keys(), ", "))
	cmd.Flags().StringVar(&opts.structure, "structure", "", "Custom outline skeleton, used with --format custom")
	cmd.Flags().IntVarP(&opts.pages, "pages", "p", 0, "Target page count")
	cmd.Flags().BoolVar(&opts.consensus, "consensus", false, "Write each section through the model council")
	cmd.Flags().StringArrayVar(&opts.docs, "doc", nil, "Document to include as evidence (repeatable; pdf, md, txt, html)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&opts.chartOut, "chart-out", "", "Write the extracted chart data as JSON to this file")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func runGenerate(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts *generateOptions) error {
	docs, err := readDocuments(opts.docs)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()
	if _, err := app.StartMetrics(); err != nil {
		return err
	}

	req := pipeline.Request{
		Topic:           opts.topic,
		Format:          firstNonEmpty(opts.format, cfg.Pipeline.Format),
		CustomStructure: opts.structure,
		Pages:           opts.pages,
		Documents:       docs,
		UseConsensus:    opts.consensus || cfg.Pipeline.UseConsensus,
	}
	if req.Pages <= 0 {
		req.Pages = cfg.Pipeline.Pages
	}

	stderr := cmd.ErrOrStderr()
	res, err := app.Generate(ctx, req, progress.Func(func(msg string) {
		fmt.Fprintln(stderr, msg)
	}))
	if err != nil {
		return err
	}

	if opts.chartOut != "" && res.Chart != nil {
		data, err := json.MarshalIndent(res.Chart, "", "  ")
		if err != nil {
			return fmt.Errorf("encode chart: %w", err)
		}
		if err := writeFile(opts.chartOut, data); err != nil {
			return err
		}
	}

	if opts.out == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), res.ReportText)
		return err
	}
	if err := writeFile(opts.out, []byte(res.ReportText+"\n")); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Report written to %s (run %s", opts.out, res.RunID)
	if res.ReportID > 0 {
		fmt.Fprintf(stderr, ", archived as #%d", res.ReportID)
	}
	fmt.Fprintln(stderr, ")")
	return nil
}

func readDocuments(paths []string) ([]source.Document, error) {
	docs := make([]source.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		docs = append(docs, source.Document{Filename: filepath.Base(p), Data: data})
	}
	return docs, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List report formats and length tiers",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FORMAT\tTITLE\tDESCRIPTION")
			for _, key := range formats.Keys() {
				if key == formats.Custom {
					fmt.Fprintf(w, "%s\t%s\t%s\n", key, "Custom", "Outline given with --structure")
					continue
				}
				t := formats.Lookup(key)
				fmt.Fprintf(w, "%s\t%s\t%s\n", key, t.Title, t.Description)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TIER\tPAGES\tSECTIONS\tWRITING CALLS")
			low := 1
			for _, tier := range formats.Tiers() {
				pages := fmt.Sprintf("%d-%d", low, tier.MaxPages)
				if tier.MaxPages == 0 {
					pages = fmt.Sprintf("%d+", low)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", tier.Name, pages, tier.Sections, tier.WritingCalls)
				low = tier.MaxPages + 1
			}
			_ = w.Flush()
		},
	}
}

func modelsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show role chains and configured endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.setup(cmd)
			if err != nil {
				return err
			}
			registry := model.NewFromConfig(cfg.Models)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tPREFERRED\tCHAIN")
			for _, role := range registry.ListRoles() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", role, registry.Resolve(role), strings.Join(registry.GetFallbackChain(role), " > "))
			}
			fmt.Fprintf(w, "panel\t\t%s\n", strings.Join(registry.Panel(), ", "))
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ENDPOINT\tPROVIDER\tMODEL")
			for _, name := range registry.ListEndpoints() {
				ep := registry.GetEndpoint(name)
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, ep.Provider, ep.Model)
			}
			return w.Flush()
		},
	}
}

func reportsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse archived reports",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, g, func(ctx context.Context, store *storage.Store) error {
				reports, err := store.ListReports(ctx, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED\tCHARS\tTOPIC")
				for _, r := range reports {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Chars, r.Topic)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of reports to list")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, g, func(ctx context.Context, store *storage.Store) error {
				report, err := store.GetReport(ctx, id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Content)
				return err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, g, func(ctx context.Context, store *storage.Store) error {
				if err := store.DeleteReport(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func withStore(cmd *cobra.Command, g *globals, fn func(ctx context.Context, store *storage.Store) error) error {
	cfg, _, err := g.setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Disabled {
		return fmt.Errorf("report archive is disabled in config")
	}
	ctx := cmd.Context()
	store, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write the default user config if it does not exist",
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.NewLoader(newLogger(g.logLevel, cmd.ErrOrStderr())).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := g.setup(cmd)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
	)
	return cmd
}
