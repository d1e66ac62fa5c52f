// Package commands implements the relief command-line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/infrastructure/config"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/relief/pkg/interfaces/api"
	"github.com/vsinha/relief/pkg/interfaces/cli/output"
)

// ErrActionFailed is returned when approve, execute or reject was refused.
// The refusal message has already been written to stdout.
var ErrActionFailed = errors.New("action failed")

// Config holds the options shared by every subcommand
type Config struct {
	ConfigFile  string
	EnvFiles    []string
	ScenarioDir string
	DisasterID  string
	Format      string
	Verbose     bool
}

// Command is one parsed subcommand invocation
type Command struct {
	name   string
	config Config
	flags  *pflag.FlagSet
	stdout io.Writer
	stderr io.Writer

	// execute
	quantity int64
	comments string
	// reject
	reason string
}

type handlerFunc func(ctx context.Context, c *Command, app *App) error

var handlers = map[string]handlerFunc{
	"import":    runImport,
	"recommend": runRecommend,
	"critical":  runCritical,
	"capacity":  runCapacity,
	"pending":   runPending,
	"summary":   runSummary,
	"approve":   runApprove,
	"execute":   runExecute,
	"reject":    runReject,
	"serve":     runServe,
}

// Run parses args, starting with the subcommand name, and executes it
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		showHelp(stdout)
		return nil
	}

	name := args[0]
	handler, ok := handlers[name]
	if !ok {
		showHelp(stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	cmd := newCommand(name, stdout, stderr)
	if err := cmd.flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if !output.ValidFormat(cmd.config.Format) {
		return fmt.Errorf("unsupported output format: %s", cmd.config.Format)
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: cmd.config.ConfigFile,
		EnvFiles:   cmd.config.EnvFiles,
		Flags:      cmd.flags,
	})
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cmd.config.ScenarioDir != "" {
		if err := cmd.importScenario(ctx, app); err != nil {
			return err
		}
	} else if cfg.Store.Driver == config.DriverMemory && name != "serve" {
		return fmt.Errorf("%s: the memory store starts empty; pass --scenario or configure a persistent store", name)
	}

	return handler(ctx, cmd, app)
}

func newCommand(name string, stdout, stderr io.Writer) *Command {
	c := &Command{name: name, stdout: stdout, stderr: stderr}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&c.config.ConfigFile, "config", "", "Path to a YAML config file")
	fs.StringSliceVar(&c.config.EnvFiles, "env-file", []string{".env"}, "Env files to load before reading RELIEF_* variables")
	fs.StringVar(&c.config.ScenarioDir, "scenario", "", "Scenario directory of CSV files to import first")
	fs.StringVar(&c.config.DisasterID, "disaster", "", "Limit output to one disaster")
	fs.StringVar(&c.config.Format, "format", output.FormatText, "Output format: text, json, yaml, csv")
	fs.BoolVarP(&c.config.Verbose, "verbose", "v", false, "Enable verbose output")

	// Bound into the config by name
	fs.String("store.driver", "", "Store driver: memory, sqlite, postgres")
	fs.String("store.dsn", "", "Store data source name")
	fs.String("log.level", "", "Log level: error, warn, info, debug, trace")
	fs.String("http.addr", "", "Listen address for serve")

	switch name {
	case "execute":
		fs.Int64Var(&c.quantity, "quantity", 0, "Quantity to allocate")
		fs.StringVar(&c.comments, "comments", "", "Comment appended to the request log")
	case "reject":
		fs.StringVar(&c.reason, "reason", "", "Reason appended to the request log")
	}

	c.flags = fs
	return c
}

func (c *Command) scope() entities.Scope {
	return entities.ForDisaster(entities.DisasterID(c.config.DisasterID))
}

func (c *Command) render(result any) error {
	return output.Generate(result, output.Config{
		Format:  c.config.Format,
		Writer:  c.stdout,
		Verbose: c.config.Verbose,
	})
}

func (c *Command) printf(format string, args ...any) {
	if c.config.Verbose {
		fmt.Fprintf(c.stderr, format, args...)
	}
}

// requestArg returns the single positional request ID
func (c *Command) requestArg() (entities.RequestID, error) {
	if c.flags.NArg() != 1 {
		return "", fmt.Errorf("usage: relief %s <request-id>", c.name)
	}
	return entities.RequestID(c.flags.Arg(0)), nil
}

func (c *Command) importScenario(ctx context.Context, app *App) error {
	c.printf("📂 Loading scenario from %s...\n", c.config.ScenarioDir)

	scenario, err := csv.NewLoader().LoadScenario(c.config.ScenarioDir)
	if err != nil {
		return fmt.Errorf("error loading scenario: %w", err)
	}
	shelters, err := app.Intake.Import(ctx, scenario)
	if err != nil {
		return fmt.Errorf("error importing scenario: %w", err)
	}

	c.printf("✅ Scenario imported:\n")
	c.printf("  Disasters: %d\n", len(scenario.Disasters))
	c.printf("  Shelters: %d\n", len(scenario.Shelters))
	c.printf("  Resources: %d\n", len(scenario.Resources))
	c.printf("  Requests: %d\n", len(scenario.Requests))
	c.printf("  Shelters recomputed: %d\n\n", len(shelters))
	return nil
}

func runImport(ctx context.Context, c *Command, app *App) error {
	if c.config.ScenarioDir == "" {
		return fmt.Errorf("import: --scenario is required")
	}
	shelters, err := app.Dashboard.GetShelterCapacity(ctx, c.scope())
	if err != nil {
		return err
	}
	return c.render(shelters)
}

func runRecommend(ctx context.Context, c *Command, app *App) error {
	start := time.Now()
	recs, err := app.Dashboard.GetResourceRecommendations(ctx, c.scope())
	if err != nil {
		return fmt.Errorf("failed to generate recommendations: %w", err)
	}
	c.printf("⏱️  Generated %d recommendations in %v\n\n", len(recs), time.Since(start))
	return c.render(recs)
}

func runCritical(ctx context.Context, c *Command, app *App) error {
	resources, err := app.Dashboard.GetCriticalResources(ctx, c.scope())
	if err != nil {
		return err
	}
	return c.render(resources)
}

func runCapacity(ctx context.Context, c *Command, app *App) error {
	shelters, err := app.Dashboard.GetShelterCapacity(ctx, c.scope())
	if err != nil {
		return err
	}
	return c.render(shelters)
}

func runPending(ctx context.Context, c *Command, app *App) error {
	pending, err := app.Dashboard.GetPendingRequests(ctx, c.scope())
	if err != nil {
		return err
	}
	return c.render(pending)
}

func runSummary(ctx context.Context, c *Command, app *App) error {
	summary, err := app.Dashboard.GetDisasterSummary(ctx, c.scope())
	if err != nil {
		return err
	}
	return c.render(summary)
}

func runApprove(ctx context.Context, c *Command, app *App) error {
	id, err := c.requestArg()
	if err != nil {
		return err
	}
	return c.renderAction(app.Dashboard.ApproveRequest(ctx, id))
}

func runExecute(ctx context.Context, c *Command, app *App) error {
	id, err := c.requestArg()
	if err != nil {
		return err
	}
	return c.renderAction(app.Dashboard.ExecuteRecommendation(ctx, id, entities.Quantity(c.quantity), c.comments))
}

func runReject(ctx context.Context, c *Command, app *App) error {
	id, err := c.requestArg()
	if err != nil {
		return err
	}
	return c.renderAction(app.Dashboard.RejectRequest(ctx, id, c.reason))
}

func (c *Command) renderAction(result dto.ActionResult) error {
	if err := c.render(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrActionFailed, result.Code)
	}
	return nil
}

func runServe(ctx context.Context, c *Command, app *App) error {
	if c.config.ScenarioDir == "" {
		if _, err := app.Ledger.RecomputeAll(ctx, entities.AllScopes()); err != nil {
			return fmt.Errorf("failed to recompute shelter capacity: %w", err)
		}
	}

	server := &http.Server{
		Addr:              app.Config.HTTP.Addr,
		Handler:           api.NewRouter(app.Dashboard, app.Intake, app.Events, app.Registry, app.Logger.WithName("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, server, app.Logger)
}

func serve(ctx context.Context, server *http.Server, logger logr.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// showHelp displays the help message
func showHelp(w io.Writer) {
	fmt.Fprintf(w, `relief - disaster-relief resource allocation

USAGE:
    relief <command> [options] [request-id]

COMMANDS:
    import      Import a scenario directory and show shelter capacity
    recommend   Rank open requests and recommend allocations
    critical    List resources at or below their minimum threshold
    capacity    Show shelter occupancy and status
    pending     List pending and approved requests
    summary     Summarize a disaster
    approve     Allocate a request's full outstanding quantity
    execute     Allocate part of a request (--quantity, --comments)
    reject      Reject a request (--reason)
    serve       Serve the dashboard API over HTTP

OPTIONS:
    --scenario <dir>       Scenario directory of CSV files to import first
    --disaster <id>        Limit output to one disaster
    --format <fmt>         Output format: text, json, yaml, csv (default: text)
    --config <file>        YAML config file
    --env-file <file>      Env file to load (default: .env)
    --store.driver <name>  memory, sqlite or postgres (default: memory)
    --store.dsn <dsn>      Store data source name
    --log.level <level>    error, warn, info, debug, trace
    --http.addr <addr>     Listen address for serve (default: :8080)
    -v, --verbose          Enable verbose output

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── disasters.csv   # optional
    ├── shelters.csv
    ├── resources.csv
    └── requests.csv    # optional

CSV FILE FORMATS:

disasters.csv:
    id,name,type,severity,status,started_at
    HUR-24,Hurricane Delia,Hurricane,4,Active,2025-08-30

shelters.csv:
    id,disaster_id,name,location,capacity,status
    NORTH_HS,HUR-24,North High School,12 Elm St,200,Available

resources.csv:
    id,disaster_id,name,type,unit,stock_level,minimum_threshold
    WATER,,Bottled Water,Water,case,500,100

requests.csv:
    id,shelter_id,resource_id,quantity,priority,status,requested_at
    WAT-1,NORTH_HS,WATER,300,High,Pending,2025-09-01T08:03:00Z

ENVIRONMENT:
    RELIEF_STORE_DRIVER, RELIEF_STORE_DSN, RELIEF_LOG_LEVEL, RELIEF_HTTP_ADDR,
    RELIEF_CAPACITY_NEAR_CAPACITY, RELIEF_CAPACITY_AT_CAPACITY,
    RELIEF_SCORING_PRIORITY_WEIGHT, RELIEF_SCORING_UTILIZATION_WEIGHT,
    RELIEF_SCORING_CRITICAL_WEIGHT, RELIEF_SCORING_STOCKOUT_WEIGHT

EXAMPLES:
    relief recommend --scenario ./hurricane -v
    relief import --scenario ./hurricane --store.driver sqlite --store.dsn relief.db
    relief execute WAT-1 --quantity 100 --comments "truck 4" --store.driver sqlite --store.dsn relief.db
    relief serve --store.driver sqlite --store.dsn relief.db --http.addr :9090
`)
}
