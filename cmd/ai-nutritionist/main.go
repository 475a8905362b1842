package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"ai-nutritionist/internal/app"
	"ai-nutritionist/internal/config"
	"ai-nutritionist/internal/httpapi"
	"ai-nutritionist/internal/logger"
	"ai-nutritionist/internal/metrics"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/shared"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ai-nutritionist",
		Short: "Personalized meal plans with calorie targets and health-condition checks",
		Long: `ai-nutritionist estimates a daily calorie target from a user profile,
picks the closest plan from a meal catalog, resolves each meal's
ingredients and flags ingredients that conflict with the user's health
conditions. It serves a JSON API and a few maintenance commands.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ai-nutritionist version %s (built %s)\n", version, buildTime)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:     "suggest key=value...",
		Short:   "Compose and store a meal plan for a profile",
		Example: "  ai-nutritionist suggest age=30 gender=Female height=160 weight=55 activity=Light diet=Vegetarian budget=Low conditions=Diabetes",
		RunE:    runSuggest,
	})

	validateCmd := &cobra.Command{
		Use:   "validate [plan.json]",
		Short: "Check a meal plan against health conditions",
		Long:  "Reads a meal plan as JSON from the given file, or from stdin when no file or \"-\" is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().StringSlice("conditions", nil, "conditions to check, overriding the plan's profile")
	rootCmd.AddCommand(validateCmd)

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the meal catalog and import the ingredient CSV",
		RunE:  runIngest,
	}
	ingestCmd.Flags().Bool("force", false, "import ingredients even when rows already exist")
	rootCmd.AddCommand(ingestCmd)

	ratingsCmd := &cobra.Command{
		Use:   "ratings [YYYY-MM-DD]",
		Short: "Show the meal ratings of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRatings,
	}
	ratingsSetCmd := &cobra.Command{
		Use:   "set <slot> <1-5>",
		Short: "Rate a meal slot",
		Args:  cobra.ExactArgs(2),
		RunE:  runRatingsSet,
	}
	ratingsSetCmd.Flags().String("date", "", "date to rate, default today")
	ratingsSetCmd.Flags().String("recipe", "", "recipe that was eaten")
	ratingsSetCmd.Flags().String("plan-id", "", "plan the meal came from")
	ratingsCmd.AddCommand(ratingsSetCmd)
	rootCmd.AddCommand(ratingsCmd)

	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show LLM token usage",
		RunE:  runMetrics,
	}
	metricsCmd.Flags().Int("days", 7, "number of days to report")
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old usage records",
		RunE:  runMetricsCleanup,
	}
	cleanupCmd.Flags().Int("days", 30, "keep records for the last N days")
	metricsCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(metricsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the application. Commands that print
// results keep stdout clean by logging to stderr.
func setup(quiet bool) (*app.App, *config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if quiet && (cfg.Logging.Output == "" || cfg.Logging.Output == "stdout") {
		cfg.Logging.Output = "stderr"
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.Open(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return a, cfg, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, cfg, log, err := setup(false)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	log.Info("Starting ai-nutritionist",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Build(ctx); err != nil {
		return err
	}

	srv := httpapi.New(httpapi.Deps{
		Plans:      a.Plans,
		Recipes:    a.Resolver,
		Ratings:    a.Ratings,
		Shopping:   a.Shopping,
		Classifier: a.Classifier,
		Workouts:   a.Workouts,
		Metrics:    a.Metrics,
		DataPath:   a.DataPath(),
	}, cfg.Server.Mode, log)

	if err := srv.ListenAndServe(ctx, cfg.Server); err != nil {
		return err
	}
	log.Info("Server shutdown complete")
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	p, err := profile.ParseKeyValues(args)
	if err != nil {
		return err
	}

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Build(ctx); err != nil {
		return err
	}
	gen, err := a.Plans.Compose(ctx, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), gen)
}

func runValidate(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open plan: %w", err)
		}
		defer f.Close()
		in = f
	}
	var plan planner.MealPlan
	if err := json.NewDecoder(in).Decode(&plan); err != nil {
		return fmt.Errorf("failed to decode plan: %w", err)
	}
	conditions, _ := cmd.Flags().GetStringSlice("conditions")

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx := cmd.Context()
	if err := a.Build(ctx); err != nil {
		return err
	}
	res, err := a.Plans.Validate(ctx, &plan, conditions)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runIngest(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	report, err := a.Ingest(cmd.Context(), force)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Catalog: %d rows (%d embedded, %d reused)\n", report.CatalogRows, report.EmbeddingsNew, report.EmbeddingsReused)
	if report.IngredientsSkipped {
		fmt.Fprintln(out, "Ingredients: already imported, use --force to append again")
	} else {
		fmt.Fprintf(out, "Ingredients: %d rows imported\n", report.IngredientRows)
	}
	return nil
}

func runRatings(cmd *cobra.Command, args []string) error {
	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	date := a.Ratings.Today()
	if len(args) == 1 {
		date = args[0]
	}
	byslot, err := a.Ratings.ForDate(cmd.Context(), date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ratings for %s\n", date)
	if len(byslot) == 0 {
		fmt.Fprintln(out, "  none")
		return nil
	}
	for _, slot := range shared.Slots {
		rt, ok := byslot[slot]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %-10s %.1f", slot, rt.Value)
		if rt.Recipe != "" {
			fmt.Fprintf(out, "  %s", rt.Recipe)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runRatingsSet(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: rating %q is not a number", rating.ErrInvalidRating, args[1])
	}
	date, _ := cmd.Flags().GetString("date")
	recipeName, _ := cmd.Flags().GetString("recipe")
	planID, _ := cmd.Flags().GetString("plan-id")

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	rt, err := a.Ratings.Set(cmd.Context(), rating.Rating{
		Date:     date,
		MealSlot: shared.Slot(args[0]),
		Value:    value,
		Recipe:   recipeName,
		PlanID:   planID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rated %s %.1f on %s\n", rt.MealSlot, rt.Value, rt.Date)
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	usage, err := a.Usage.GetDailyUsage(cmd.Context(), days)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token usage, last %d days\n", days)
	if len(usage) == 0 {
		fmt.Fprintln(out, "  no records")
	}
	for _, d := range usage {
		fmt.Fprintf(out, "  %s  %d prompt + %d completion tokens (%d execs)\n",
			d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution)
	}

	health := metrics.GetSysHealth(a.DataPath())
	fmt.Fprintf(out, "Data on disk: %s\n", health.DataDiskSize)
	return nil
}

func runMetricsCleanup(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")

	a, _, log, err := setup(true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	affected, err := a.Usage.Cleanup(cmd.Context(), days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old metric records.\n", affected)
	return nil
}
