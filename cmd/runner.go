package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tabx/internal/popup"
	"github.com/desertthunder/tabx/internal/repositories"
	"github.com/desertthunder/tabx/internal/services"
	"github.com/desertthunder/tabx/internal/shared"
	"github.com/desertthunder/tabx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultCollectTimeout = 5 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	transport  services.Transport
	journal    *repositories.Journal
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Transport, Journal and API are built from the config when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	Transport  services.Transport
	Journal    *repositories.Journal
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		transport:  opts.Transport,
		journal:    opts.Journal,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tabsCommand, defaultCommand, actionCommand, toggleCommand, openCommand,
		anomaliesCommand, serveCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the env file and config file named by the root flags, then applies overrides.
//
// A missing config file keeps the current config.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnvFile(cmd.String("env-file")); err != nil {
		return ctx, fmt.Errorf("failed to load env file: %w", err)
	}

	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if level := cmd.String("log-level"); level != "" {
		r.config.Popup.LogLevel = level
	}
	if err := r.config.ApplyEnv(); err != nil {
		return ctx, err
	}

	lvl, _ := shared.ParseLogLevel(r.config.Popup.LogLevel)
	shared.SetLogLevel(r.logger, lvl)
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// connect returns a connected transport, dialing the hub from config unless one was injected.
func (r *Runner) connect(ctx context.Context) (services.Transport, error) {
	t := r.transport
	if t == nil {
		t = services.NewHub(services.HubOpts{
			URL:          r.config.Hub.URL,
			CommandRate:  r.config.Hub.CommandRate,
			CommandBurst: r.config.Hub.CommandBurst,
			Logger:       r.logger,
		})
	}

	if err := t.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to control plane: %w", err)
	}
	return t, nil
}

// openJournal returns the injected journal or one backed by the configured database.
//
// The returned close func is never nil.
func (r *Runner) openJournal() (*repositories.Journal, func(), error) {
	if r.journal != nil {
		return r.journal, func() {}, nil
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open anomaly journal: %w", err)
	}
	return repositories.NewJournal(repositories.NewAnomalyRepository(db)), closeDB(db, r.logger), nil
}

func closeDB(db *sql.DB, logger *log.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
}

// session builds an unopened popup session over a connected transport.
//
// With withJournal set, anomalies are also written to the sqlite journal, which is returned
// so callers can read it back. The journal is nil otherwise.
func (r *Runner) session(ctx context.Context, withJournal bool) (*popup.Session, *repositories.Journal, func(), error) {
	policy, err := popup.ParsePendingPolicy(r.config.Popup.PendingDefault)
	if err != nil {
		return nil, nil, nil, err
	}

	t, err := r.connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := popup.Options{
		ControlPlane: t,
		Peer:         t,
		Logger:       r.logger,
		Policy:       policy,
	}

	var journal *repositories.Journal
	closeJournal := func() {}
	if withJournal {
		j, closeFn, err := r.openJournal()
		if err != nil {
			t.Close()
			return nil, nil, nil, err
		}
		opts.Recorder = j
		journal, closeJournal = j, closeFn
	}

	sess := popup.NewSession(opts)
	cleanup := func() {
		sess.Close()
		if err := t.Close(); err != nil {
			r.logger.Debug("transport close", "error", err)
		}
		closeJournal()
	}
	return sess, journal, cleanup, nil
}

// collect opens a session and waits for every tab to reply, up to the --timeout flag.
//
// A timeout is logged and the partial result returned, since late tabs are normal.
func (r *Runner) collect(ctx context.Context, cmd *cli.Command) (*popup.Session, *tasks.CollectResult, func(), error) {
	sess, _, cleanup, err := r.session(ctx, cmd.Bool("journal"))
	if err != nil {
		return nil, nil, nil, err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultCollectTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	engine := tasks.NewPopupEngine(sess, r.logger)
	res, err := engine.Collect(cctx, nil)
	if errors.Is(err, shared.ErrTimeout) {
		r.logger.Warn("not every tab replied", "error", err)
		err = nil
	}
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return sess, res, cleanup, nil
}

// statusClient returns the injected API client or one for the configured server address.
func (r *Runner) statusClient(cmd *cli.Command) *services.APIService {
	if r.api != nil {
		return r.api
	}
	addr := cmd.String("addr")
	if addr == "" {
		addr = "http://" + r.config.Server.Addr()
	}
	return services.NewAPIService(addr, r.httpClient)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
