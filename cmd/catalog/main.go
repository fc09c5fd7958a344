package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/database"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is the shared state of every subcommand
type env struct {
	cfg       *config.Config
	log       *zap.Logger
	rates     *repository.RateRepository
	sequences *service.NumberSequenceService
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Maintain the processing rate catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	root.AddCommand(newImportCmd(e), newStatsCmd(e), newPriceCmd(e), newSequenceCmd(e))
	return root
}

func (e *env) open() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	e.cfg = cfg
	e.log = logger.Named(log, logger.ComponentCatalog)
	e.rates = repository.NewRateRepository(db)
	e.sequences = service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), nil, e.log)
	return nil
}

func newImportCmd(e *env) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:       "import (filing|packaging|charges) FILE",
		Short:     "Upsert a CSV rate sheet into the catalog",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"filing", "packaging", "charges"},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			var n int
			switch args[0] {
			case "filing":
				rates, err := pricing.ParseFilingRates(f)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				n = len(rates)
				if !dryRun {
					err = e.rates.UpsertFilingRates(ctx, rates)
				}
				if err != nil {
					return err
				}
			case "packaging":
				rates, err := pricing.ParsePackagingRates(f)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				n = len(rates)
				if !dryRun {
					err = e.rates.UpsertPackagingRates(ctx, rates)
				}
				if err != nil {
					return err
				}
			case "charges":
				rates, err := pricing.ParseChargeRates(f)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				n = len(rates)
				if !dryRun {
					err = e.rates.UpsertChargeRates(ctx, rates)
				}
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown rate sheet %q", args[0])
			}

			e.log.Info("Rate sheet imported",
				zap.String("sheet", args[0]),
				zap.String("file", args[1]),
				zap.Int("rows", n),
				zap.Bool("dry_run", dryRun))
			verb := "imported"
			if dryRun {
				verb = "validated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s rates %s\n", n, args[0], verb)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without writing")
	return cmd
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of rates per table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filing, packaging, charges, err := e.rates.Counts(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "filing\t%d\n", filing)
			fmt.Fprintf(w, "packaging\t%d\n", packaging)
			fmt.Fprintf(w, "charges\t%d\n", charges)
			return w.Flush()
		},
	}
}

func newPriceCmd(e *env) *cobra.Command {
	var (
		item      domain.ConversationItem
		quantity  int
		factoryID int64
		timeout   time.Duration
		component string
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price one item against the catalog and print the breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if item.Product == "" {
				return fmt.Errorf("--product is required")
			}
			if cmd.Flags().Changed("quantity") {
				item.RequestedQuantity = &quantity
			}
			if factoryID <= 0 {
				factoryID = e.cfg.Pricing.DefaultFactoryID
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			engine := pricing.NewEngine(e.rates, e.cfg.Pricing.LookupTimeoutDuration(), e.log)
			result := engine.Price(ctx, item, factoryID)

			if component != "" {
				c, ok := result.Component(component)
				if !ok {
					return fmt.Errorf("unknown component %q", component)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %.4f %s\n", c.Kind, c.Amount, componentStatus(c))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COMPONENT\tAMOUNT\tSTATUS")
			for _, c := range result.Components {
				fmt.Fprintf(w, "%s\t%.4f\t%s\n", c.Kind, c.Amount, componentStatus(c))
			}
			fmt.Fprintf(w, "unit price\t%.4f\t%s\n", result.UnitPrice, e.cfg.Quotes.Currency)
			fmt.Fprintf(w, "total (x%d)\t%.2f\t%s\n", result.Quantity, result.TotalPrice, e.cfg.Quotes.Currency)
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&item.Product, "product", "", "product, e.g. Salmon")
	f.StringVar(&item.TrimType, "trim", "", "trim type")
	f.StringVar(&item.RMSpec, "rm-spec", "", "raw material spec")
	f.StringVar(&item.ProductionType, "production", "", "production type, e.g. Fresh or Frozen")
	f.StringVar(&item.PackagingType, "packaging", "", "packaging type")
	f.StringVar(&item.TransportMode, "transport", "", "transport mode")
	f.IntVar(&quantity, "quantity", 1, "requested quantity")
	f.Int64Var(&factoryID, "factory", 0, "factory id (default from config)")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	f.StringVar(&component, "component", "", "print only this component, e.g. Freezing")
	return cmd
}

func newSequenceCmd(e *env) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect or seed the enquiry and quote number counters",
	}
	cmd.PersistentFlags().IntVar(&year, "year", 0, "counter year (default current year)")

	counterYear := func() int {
		if year > 0 {
			return year
		}
		return time.Now().UTC().Year()
	}

	show := &cobra.Command{
		Use:   "show PREFIX",
		Short: "Print the last issued number for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := strings.ToUpper(args[0])
			y := counterYear()
			seq, err := e.sequences.Current(cmd.Context(), prefix, y)
			if err != nil {
				return err
			}
			if seq == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s numbers issued in %d, next is %s\n", prefix, y, service.FormatNumber(prefix, y, 1))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "last %s, next is %s\n",
				service.FormatNumber(prefix, y, seq), service.FormatNumber(prefix, y, seq+1))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init PREFIX VALUE",
		Short: "Raise a counter so numbers up to VALUE are never issued again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := strings.ToUpper(args[0])
			value, err := strconv.Atoi(args[1])
			if err != nil || value < 0 {
				return fmt.Errorf("invalid sequence value %q", args[1])
			}
			y := counterYear()
			if err := e.sequences.Initialize(cmd.Context(), prefix, y, value); err != nil {
				return err
			}
			seq, err := e.sequences.Current(cmd.Context(), prefix, y)
			if err != nil {
				return err
			}
			e.log.Info("Number sequence initialized",
				zap.String("prefix", prefix),
				zap.Int("year", y),
				zap.Int("sequence", seq))
			fmt.Fprintf(cmd.OutOrStdout(), "next %s number is %s\n", prefix, service.FormatNumber(prefix, y, seq+1))
			return nil
		},
	}

	cmd.AddCommand(show, initCmd)
	return cmd
}

func componentStatus(c pricing.Component) string {
	switch {
	case c.Skipped:
		return "n/a"
	case c.Err != nil:
		return "error: " + c.Err.Error()
	case !c.Found:
		return "missing"
	default:
		return "ok"
	}
}
