// Package cli implements the command-line interface for the fodder analyzer.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/controller"
	"github.com/fodder-analyzer/internal/format"
	"github.com/fodder-analyzer/internal/forecast"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/upload"
	"github.com/fodder-analyzer/internal/web"
)

// CLI encapsulates the command-line interface
type CLI struct {
	rootCmd *cobra.Command
	logger  *logging.Logger
	out     io.Writer
	ui      *ui

	// global flags
	provider string
	dataDir  string
	noColor  bool
	output   string

	ctrl          *controller.Controller
	newController func(*config.Config) *controller.Controller
}

// New creates a new CLI instance
func New() *CLI {
	logger, err := logging.New(logging.Config{
		Level:       logging.WARN,
		LogDir:      "logs",
		EnableColor: true,
		Component:   "cli",
		Version:     controller.Version,
	})
	if err != nil || logger == nil {
		logger = logging.GetDefault()
	}
	cli := &CLI{
		logger: logger,
		out:    os.Stdout,
		newController: func(cfg *config.Config) *controller.Controller {
			return controller.NewWithOptions(controller.Options{Config: cfg, Logger: logger})
		},
	}
	cli.buildCommands()
	return cli
}

// newWithController builds a CLI around an existing controller
func newWithController(ctrl *controller.Controller, out io.Writer) *CLI {
	cli := &CLI{logger: logging.Nop(), out: out, ctrl: ctrl, noColor: true}
	cli.buildCommands()
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetErr(out)
	return cli
}

// Execute runs the CLI
func (c *CLI) Execute() error {
	defer func() {
		if c.ctrl != nil {
			_ = c.ctrl.Close()
		}
	}()
	return c.rootCmd.Execute()
}

// controller builds the controller on first use so flags can adjust the
// configuration
func (c *CLI) controller() *controller.Controller {
	if c.ctrl != nil {
		return c.ctrl
	}
	cfg := *config.Get()
	if c.provider != "" {
		cfg.Assistant.Provider = strings.ToLower(c.provider)
	}
	if c.dataDir != "" {
		cfg.Data.Dir = c.dataDir
	}
	c.ctrl = c.newController(&cfg)
	return c.ctrl
}

// buildCommands constructs the command tree
func (c *CLI) buildCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "fodder-analyzer",
		Short: "Regional livestock fodder supply and demand analyzer",
		Long: `
   _____ ___  ____  ____  _____ ____
  |  ___/ _ \|  _ \|  _ \| ____|  _ \
  | |_ | | | | | | | | | |  _| | |_) |
  |  _|| |_| | |_| | |_| | |___|  _ <
  |_|   \___/|____/|____/|_____|_| \_\

  ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

  Estimates district fodder supply against livestock demand and answers
  free-text questions about shortages, rankings and forecasts.

  Answers come from a local language model when one is reachable and
  from the built-in rule engine otherwise.`,
		Version:       controller.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.ui = newUI(c.out, c.noColor)
		},
	}

	pf := c.rootCmd.PersistentFlags()
	pf.StringVar(&c.provider, "provider", "", "Answer provider (auto, ollama, openai, local)")
	pf.StringVar(&c.dataDir, "data-dir", "", "Directory holding the fodder CSV tables")
	pf.BoolVar(&c.noColor, "no-color", c.noColor, "Disable colored output")
	pf.StringVarP(&c.output, "output", "o", "table", "Output format (table, json)")

	c.rootCmd.AddCommand(c.askCmd())
	c.rootCmd.AddCommand(c.forecastCmd())
	c.rootCmd.AddCommand(c.scenarioCmd())
	c.rootCmd.AddCommand(c.regionsCmd())
	c.rootCmd.AddCommand(c.insightsCmd())
	c.rootCmd.AddCommand(c.uploadCmd())
	c.rootCmd.AddCommand(c.refreshCmd())
	c.rootCmd.AddCommand(c.logsCmd())
	c.rootCmd.AddCommand(c.webCmd())
}

// askCmd creates the ask command
func (c *CLI) askCmd() *cobra.Command {
	var (
		stream      bool
		rulesOnly   bool
		contextFile string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about fodder supply and demand",
		Long: `Ask a free-text question. The answer is streamed from a language
model when one is available, otherwise the rule engine answers.

Examples:
  fodder-analyzer ask "Compare Prakasam and Eluru"
  fodder-analyzer ask "Which district has the lowest demand?"
  fodder-analyzer ask --stream "Forecast for Kadapa"
  fodder-analyzer ask --context-file herd.csv "How many cattle are listed?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			req := controller.ChatRequest{Message: strings.Join(args, " ")}
			if contextFile != "" {
				preview, err := readContextFile(contextFile)
				if err != nil {
					return err
				}
				req.Context = preview
			}
			return c.runAsk(ctx, req, stream, rulesOnly)
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Print the answer as it is generated")
	cmd.Flags().BoolVar(&rulesOnly, "rules", false, "Answer with the rule engine only")
	cmd.Flags().StringVar(&contextFile, "context-file", "", "CSV or XLSX file to include as context")

	return cmd
}

func readContextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening context file: %w", err)
	}
	defer f.Close()

	result, err := upload.Parse(path, f, 0)
	if err != nil {
		return "", err
	}
	return result.Preview, nil
}

func (c *CLI) runAsk(ctx context.Context, req controller.ChatRequest, stream, rulesOnly bool) error {
	ctrl := c.controller()

	if rulesOnly {
		answer := ctrl.Ask(ctx, req)
		if c.output == "json" {
			return c.printJSON(answer)
		}
		fmt.Fprintln(c.out, answer.Text)
		return nil
	}

	if stream {
		for chunk, err := range ctrl.ChatStream(ctx, req) {
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, chunk)
		}
		fmt.Fprintln(c.out)
		return nil
	}

	stop := c.ui.spin("Thinking...")
	resp, err := ctrl.Chat(ctx, req)
	stop()
	if err != nil {
		return err
	}
	if c.output == "json" {
		return c.printJSON(resp)
	}
	fmt.Fprintln(c.out, resp.Response)
	return nil
}

// forecastCmd creates the forecast command
func (c *CLI) forecastCmd() *cobra.Command {
	var req controller.ForecastRequest

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project fodder stock month by month",
		Long: `Project remaining fodder stock assuming demand is consumed evenly
through the year.

Examples:
  # Statewide six month outlook
  fodder-analyzer forecast

  # One district over a year with ±10% monthly noise
  fodder-analyzer forecast --region Kadapa --months 12 --jitter 0.1 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.controller().Forecast(cmd.Context(), req)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.printJSON(resp)
			}
			c.printForecast(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Region, "region", "", "District to project (default statewide)")
	cmd.Flags().IntVar(&req.Months, "months", forecast.DefaultHorizon, "Number of months to project")
	cmd.Flags().Float64Var(&req.Jitter, "jitter", 0, "Maximum relative monthly noise on consumption (0.1 = ±10%)")
	cmd.Flags().Uint64Var(&req.Seed, "seed", 0, "Seed for the noise generator")

	return cmd
}

func (c *CLI) printForecast(resp *controller.ForecastResponse) {
	p := resp.Projection
	c.ui.heading("📈 STOCK FORECAST: %s", strings.ToUpper(resp.Region))
	fmt.Fprintf(c.out, "   Supply:        %s\n", format.Tons(p.Supply))
	fmt.Fprintf(c.out, "   Demand:        %s\n", format.Tons(p.Demand))
	fmt.Fprintf(c.out, "   Monthly Burn:  %s\n\n", format.Tons(p.MonthlyBurn))

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "   PERIOD\tSTOCK\tSTATUS")
	for _, period := range p.Periods {
		fmt.Fprintf(w, "   %s\t%s\t%s\n", period.Label, format.Tons(period.Stock), c.ui.status(string(period.Status)))
	}
	w.Flush()
	fmt.Fprintln(c.out, rule)
}

// scenarioCmd creates the scenario command
func (c *CLI) scenarioCmd() *cobra.Command {
	var req controller.ScenarioRequest

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Stress-test supply against a percentage drop",
		Long: `Reduce supply by a percentage and report the resulting balance.

Examples:
  fodder-analyzer scenario --drop 20
  fodder-analyzer scenario --region Eluru --drop 35`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.controller().Scenario(cmd.Context(), req)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.printJSON(resp)
			}
			s := resp.Scenario
			c.ui.heading("🧪 SCENARIO: %d%% SUPPLY DROP IN %s", s.DropPct, strings.ToUpper(resp.Region))
			fmt.Fprintf(c.out, "   Current Supply:       %s\n", format.Tons(s.CurrentSupply))
			fmt.Fprintf(c.out, "   Hypothetical Supply:  %s\n", format.Tons(s.HypotheticalSupply))
			fmt.Fprintf(c.out, "   Demand:               %s\n", format.Tons(s.Demand))
			fmt.Fprintf(c.out, "   Resulting Balance:    %s\n", format.Tons(s.Balance))
			fmt.Fprintf(c.out, "   Resulting Status:     %s\n", c.ui.status(string(s.Status)))
			fmt.Fprintln(c.out, rule)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Region, "region", "", "District to test (default statewide)")
	cmd.Flags().IntVar(&req.DropPct, "drop", forecast.DefaultDropPct, "Supply drop in percent (0-100)")

	return cmd
}

// regionsCmd creates the regions command
func (c *CLI) regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List districts with balance, status and severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			regions, err := c.controller().RegionInsights(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.printJSON(regions)
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DISTRICT\tSUPPLY\tDEMAND\tBALANCE\tGAP\tSTATUS\tSEVERITY")
			for _, r := range regions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Name,
					format.Tons(r.TotalSupplyTons),
					format.Tons(r.TotalDemandTons),
					format.Tons(r.BalanceTons),
					format.SignedPercent(r.DeficitPercentage),
					c.ui.status(string(r.Status)),
					c.ui.status(string(r.Severity)),
				)
			}
			return w.Flush()
		},
	}
}

// insightsCmd creates the insights command
func (c *CLI) insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show statewide sufficiency, risk districts and transfer suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.controller().Insights(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.printJSON(report)
			}

			c.ui.heading("🏛️  GOVERNANCE INSIGHTS")
			fmt.Fprintf(c.out, "   Total Supply:      %s\n", format.Tons(report.Totals.Supply))
			fmt.Fprintf(c.out, "   Total Demand:      %s\n", format.Tons(report.Totals.Demand))
			fmt.Fprintf(c.out, "   Net Balance:       %s\n", format.Tons(report.Totals.Balance))
			fmt.Fprintf(c.out, "   Sufficiency Index: %.2f\n", report.SufficiencyIndex)
			fmt.Fprintf(c.out, "   Vulnerability:     %s\n", c.ui.status(string(report.Vulnerability)))
			fmt.Fprintf(c.out, "   Data Certainty:    %s\n", format.Percent(report.Certainty*100))

			if len(report.RiskRegions) > 0 {
				fmt.Fprintln(c.out)
				fmt.Fprintln(c.out, "   🚩 Risk Districts:")
				for _, r := range report.RiskRegions {
					fmt.Fprintf(c.out, "      • %s: %s (%s)\n", r.Name, format.Tons(r.BalanceTons), format.SignedPercent(r.DeficitPercentage))
				}
			}
			if len(report.Recommendations) > 0 {
				fmt.Fprintln(c.out)
				fmt.Fprintln(c.out, "   🚚 Suggested Transfers:")
				for _, rec := range report.Recommendations {
					fmt.Fprintf(c.out, "      • %s\n", rec)
				}
			}
			fmt.Fprintln(c.out)
			fmt.Fprintf(c.out, "   ℹ %s\n", report.Assumptions.Disclaimer)
			fmt.Fprintln(c.out, rule)
			return nil
		},
	}
}

// uploadCmd creates the upload command
func (c *CLI) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a CSV or XLSX preview for later questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening upload: %w", err)
			}
			defer f.Close()

			resp, err := c.controller().Upload(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.printJSON(resp)
			}
			c.ui.success("Stored %s (%d rows, %d columns) as %s", resp.Filename, resp.Rows, len(resp.Columns), resp.ID)
			fmt.Fprintln(c.out, resp.Preview)
			return nil
		},
	}
}

// refreshCmd creates the refresh command
func (c *CLI) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the fodder tables from disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := c.controller().RefreshData()
			if n == 0 {
				c.ui.warn("No districts loaded; check the data directory")
				return nil
			}
			c.ui.success("Loaded %s districts", format.Number(n))
			return nil
		},
	}
}

// logsCmd creates the logs command
func (c *CLI) logsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List rotated log files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = c.controller().Config().Logging.LogDir
			}
			files := logging.GetLogFiles(dir)
			if c.output == "json" {
				return c.printJSON(files)
			}
			if len(files) == 0 {
				c.ui.info("No log files in %s", dir)
				return nil
			}

			var total int64
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tSIZE\tMODIFIED")
			for _, f := range files {
				total += f.Size
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, logging.FormatSize(f.Size), f.Modified.Format(time.DateTime))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s files, %s\n", format.Number(len(files)), logging.FormatSize(total))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Log directory (default from config)")
	return cmd
}

// webCmd creates the web command
func (c *CLI) webCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving dashboard data, chat and uploads.

Examples:
  # Start on the configured port (8000 by default)
  fodder-analyzer web

  # Start on a custom port
  fodder-analyzer web --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWeb(port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the web server on (default from config)")

	return cmd
}

func (c *CLI) runWeb(port int) error {
	server := web.NewServer(port, c.controller())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.ui.info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (c *CLI) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
