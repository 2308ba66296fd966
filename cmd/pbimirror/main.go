// Command pbimirror mirrors a Power BI Report Server folder tree into a local
// directory, downloading only workbooks whose filename date is in range.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pbimirror/internal/catalog"
	"pbimirror/internal/config"
	"pbimirror/internal/datefilter"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/exporter"
	"pbimirror/internal/infrastructure"
	"pbimirror/internal/mirror"
	"pbimirror/internal/storage"
	transport "pbimirror/internal/transport/http"
	"pbimirror/internal/websocket"
)

const (
	exitOK    = 0
	exitFatal = 1
)

// options holds command-line values. Empty values fall back to config or a prompt.
type options struct {
	baseURL       string
	user          string
	remote        string
	local         string
	from          string
	to            string
	summary       string
	summaryFormat string
	serve         string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("pbimirror", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.baseURL, "base-url", "", "report server base URL (default from config)")
	fs.StringVar(&opts.user, "user", "", "username, DOMAIN\\user or user@domain")
	fs.StringVar(&opts.remote, "remote", "", "remote folder path, e.g. /Bio/RPA TEST/Test")
	fs.StringVar(&opts.local, "out", "", "existing local directory to mirror into")
	fs.StringVar(&opts.from, "from", "", "start date (YYYY-MM-DD), inclusive")
	fs.StringVar(&opts.to, "to", "", "end date (YYYY-MM-DD), inclusive")
	fs.StringVar(&opts.summary, "summary", "", "write a run summary to this file")
	fs.StringVar(&opts.summaryFormat, "summary-format", "", "summary format: json | csv | xlsx")
	fs.StringVar(&opts.serve, "serve", "", "serve health, metrics, status and progress on this address")
	err := fs.Parse(args)
	return opts, err
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.Remote.BaseURL = opts.baseURL
	}
	if opts.summary != "" {
		cfg.Summary.Path = opts.summary
	}
	if opts.summaryFormat != "" {
		cfg.Summary.Format = opts.summaryFormat
	}
	if opts.serve != "" {
		cfg.Server.Addr = opts.serve
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitFatal
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitFatal
	}

	logger, logFile, err := infrastructure.NewLogger(cfg.Logging, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitFatal
	}
	defer logFile.Close()

	tel, err := infrastructure.NewTelemetry(cfg.Telemetry, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize telemetry: %v\n", err)
		return exitFatal
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ServerShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.WarnContext(shutdownCtx, "Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	ctx = infrastructure.WithTraceID(ctx, infrastructure.GenerateRunID())
	p := newPrompter(stdin, stdout)

	printWelcome(stdout, cfg.Remote.BaseURL)

	rule(stdout)
	user, err := p.ask("Enter your username: ", opts.user)
	if err != nil {
		printError(stdout, "%v", err)
		return exitFatal
	}
	password, err := p.secret("Enter your password: ", os.Getenv(config.EnvPrefix+"_PASSWORD"))
	if err != nil {
		printError(stdout, "%v", err)
		return exitFatal
	}
	rule(stdout)

	creds := catalog.Credentials{Username: user, Password: password, Domain: cfg.Remote.Domain}
	client := catalog.NewClient(cfg.Remote, catalog.NewHTTPClient(cfg.Remote, creds),
		catalog.WithLogger(logger),
		catalog.WithTracer(tel.Tracer))

	rule(stdout)
	remotePath, err := p.ask("Enter the remote folder path(ex: /Bio/RPA TEST/Test/Test2): ", opts.remote)
	if err != nil {
		printError(stdout, "%v", err)
		return exitFatal
	}
	var localPath string
	if cfg.Storage.Kind != config.StorageKindS3 {
		localPath, err = p.ask("Enter the local folder path(ex: C:/Users/user/Desktop/01 송도): ", opts.local)
		if err != nil {
			printError(stdout, "%v", err)
			return exitFatal
		}
	}
	rule(stdout)

	if cfg.Storage.Kind != config.StorageKindS3 {
		if err := storage.ValidateLocalBase(localPath); err != nil {
			logger.ErrorContext(ctx, "Invalid local path", slog.String("error", err.Error()))
			fmt.Fprintln(stdout, "Local path does not exist. Exiting program...")
			return exitFatal
		}
	}

	writer, err := storage.New(ctx, cfg.Storage, localPath, logger)
	if err != nil {
		printError(stdout, "Error opening storage: %v", err)
		return exitFatal
	}

	ref := catalog.ByPath(remotePath)
	fmt.Fprintln(stdout, "Requesting folder information from", catalog.ListURL(client.BaseURL(), ref))

	listing, err := client.List(ctx, ref)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeNetwork) {
			printError(stdout, "Error authenticating: %v", err)
			return exitFatal
		}
		logger.ErrorContext(ctx, "Failed to retrieve folder items",
			slog.String("folder", ref.String()),
			slog.String("error_type", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()))
		listing = &catalog.Listing{}
	}
	if len(listing.Items) == 0 && len(listing.Malformed) == 0 {
		fmt.Fprintln(stdout, "No items retrieved.")
		return exitOK
	}
	fmt.Fprintln(stdout, "Successfully authenticated!")

	rng, ok := promptRange(p, stdout, opts)
	if !ok {
		return exitFatal
	}
	if err := rng.Validate(); err != nil {
		logger.WarnContext(ctx, "Start date is after end date, no file will match",
			slog.String("range", rng.String()))
	}

	metrics, err := infrastructure.NewMirrorMetrics(tel.Meter)
	if err != nil {
		logger.WarnContext(ctx, "Mirror metrics unavailable", slog.String("error", err.Error()))
	}

	walkerOpts := []mirror.Option{
		mirror.WithLogger(logger),
		mirror.WithTracer(tel.Tracer),
		mirror.WithMetrics(metrics),
	}
	var hub *websocket.Hub
	if cfg.Server.Addr != "" {
		hub = websocket.NewHub(logger)
		walkerOpts = append(walkerOpts, mirror.WithObserver(hub))
	}
	walker := mirror.NewWalker(client, writer, cfg.Mirror, walkerOpts...)

	printProcessStart(stdout)

	report, err := walk(ctx, cfg, walker, hub, tel, listing, rng, logger)
	if err != nil {
		printError(stdout, "Status server failed: %v", err)
		return exitFatal
	}
	summary := report.Snapshot()

	if cfg.Summary.Path != "" {
		if err := exporter.WriteSummary(cfg.Summary.Path, cfg.Summary.Format, summary); err != nil {
			printError(stdout, "Error writing summary: %v", err)
			return exitFatal
		}
		logger.InfoContext(ctx, "Wrote run summary",
			slog.String("path", cfg.Summary.Path),
			slog.String("format", cfg.Summary.Format))
	}

	if summary.Canceled {
		printError(stdout, "Walk interrupted after %d items.", summary.Counts.Items)
		return exitFatal
	}

	printFarewell(stdout)
	return exitOK
}

// promptRange asks for both dates. Invalid input ends the run after telling
// the operator the expected format.
func promptRange(p *prompter, stdout io.Writer, opts options) (datefilter.Range, bool) {
	rule(stdout)
	start, err := p.ask("Enter the start date (YYYY-MM-DD): ", opts.from)
	if err == nil {
		var end string
		end, err = p.ask("Enter the end date (YYYY-MM-DD): ", opts.to)
		if err == nil {
			rule(stdout)
			var rng datefilter.Range
			if rng, err = datefilter.ParseRange(start, end); err == nil {
				return rng, true
			}
		}
	}
	fmt.Fprintln(stdout, "Invalid date format. Please enter dates in the format 'YYYY-MM-DD'.")
	fmt.Fprintln(stdout, "Date range not specified. Exiting program...")
	return datefilter.Range{}, false
}

// walk runs the catalog walk, alongside the status server when hub is set.
// The server stops once the walk returns.
func walk(ctx context.Context, cfg *config.Config, walker *mirror.Walker, hub *websocket.Hub,
	tel *infrastructure.Telemetry, listing *catalog.Listing, rng datefilter.Range,
	logger *slog.Logger) (*mirror.Report, error) {
	if hub == nil {
		return walker.WalkListing(ctx, listing, rng), nil
	}

	router := transport.NewRouter(transport.Routes{
		Metrics:   tel.MetricsHandler,
		Status:    walker,
		WebSocket: hub.ServeWS,
	}, logger)
	server := transport.NewServer(cfg.Server.Addr, router, logger)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	g, gctx := errgroup.WithContext(serveCtx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	var report *mirror.Report
	g.Go(func() error {
		defer stopServing()
		report = walker.WalkListing(gctx, listing, rng)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
