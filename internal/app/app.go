package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/watchwire/internal/completion"
	"github.com/five82/watchwire/internal/config"
	"github.com/five82/watchwire/internal/engine"
	"github.com/five82/watchwire/internal/forward"
	"github.com/five82/watchwire/internal/kv"
	"github.com/five82/watchwire/internal/logging"
	"github.com/five82/watchwire/internal/state"
	"github.com/five82/watchwire/internal/transport"
	"github.com/five82/watchwire/internal/ui"
	"github.com/five82/watchwire/internal/watchserver"
)

const shutdownTimeout = 5 * time.Second

// Options configure the watch command.
type Options struct {
	ConfigPath string
	Endpoint   string // overrides the configured endpoint when set
	Headless   bool
	Verbose    bool
	Out        io.Writer // headless output; nil uses stdout
}

// Run connects to the configured endpoint and shows events until the
// context is cancelled or the display is closed.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}

	if err := configureLogging(cfg, opts.Verbose, !opts.Headless); err != nil {
		return err
	}
	defer logging.Close()

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.shutdown()

	p.start()

	if opts.Headless {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		runHeadless(ctx, p.store, out)
		return nil
	}

	return ui.Run(ctx, ui.Options{
		Store:     p.store,
		ThemeName: cfg.Theme,
		LogFile:   cfg.LogFile,
	})
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	ConfigPath string
	Listen     string
	Root       string
	Verbose    bool
}

// Serve runs the reference file-watching server until ctx is cancelled.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Serve.Listen = opts.Listen
	}
	if opts.Root != "" {
		cfg.Serve.Root = opts.Root
	}

	if err := configureLogging(cfg, opts.Verbose, false); err != nil {
		return err
	}
	defer logging.Close()

	srv, err := watchserver.New(watchserver.Options{
		Root:   cfg.Serve.Root,
		Ignore: cfg.Serve.Ignore,
		Logger: logging.New("watchserver"),
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Serve.Listen)
}

func configureLogging(cfg config.Config, verbose, interactive bool) error {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logging.Configure(logging.Options{
		Level:       level,
		File:        cfg.LogFile,
		JSON:        cfg.LogFormat == config.LogFormatJSON,
		Stderr:      cfg.LogStderr,
		Interactive: interactive,
	}); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	return nil
}

// pipeline holds the wired client components for one run.
type pipeline struct {
	log     *logrus.Entry
	store   *state.Store
	kv      *kv.Store
	cache   *forward.Cache
	adapter *forward.Adapter
	engine  *engine.Engine
	manager *transport.Manager
}

func newPipeline(ctx context.Context, cfg config.Config) (*pipeline, error) {
	p := &pipeline{
		log:   logging.New("app"),
		store: &state.Store{},
	}

	var store forward.Store
	if cfg.Forward.CachePath != "" {
		db, err := kv.Open(cfg.Forward.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open forward cache: %w", err)
		}
		p.kv = db
		store = db
	}
	p.cache = forward.NewCache(store, logging.New("forward"))
	if cfg.Forward.Resume {
		if p.cache.Restore(ctx) {
			p.log.Info("resumed last forwarded content")
		}
	} else {
		p.cache.Reset()
	}

	consumer, err := newConsumer(cfg)
	if err != nil {
		p.closeStore()
		return nil, err
	}

	p.adapter = forward.NewAdapter(p.cache, consumer, logging.New("forward"))
	p.adapter.OnResult = p.store.RecordForward
	p.engine = engine.New(p.adapter, p.store, logging.New("engine"))

	var manager *transport.Manager
	manager, err = transport.New(transport.Options{
		URL:     cfg.Endpoint,
		Handler: p.engine,
		OnState: func(s transport.State, err error) {
			p.store.SetConnection(s, err, manager.Attempts())
		},
		Logger: logging.New("transport"),
	})
	if err != nil {
		p.closeStore()
		return nil, fmt.Errorf("init transport: %w", err)
	}
	p.manager = manager
	p.store.SetEndpoint(manager.URL())
	return p, nil
}

func newConsumer(cfg config.Config) (forward.Consumer, error) {
	switch cfg.Forward.Target {
	case config.TargetNone:
		return forward.Discard, nil
	case config.TargetCompletion:
		key := cfg.Completion.APIKey()
		if key == "" {
			logging.New("app").Warnf("%s is not set; completion requests will likely be rejected", cfg.Completion.APIKeyEnv)
		}
		client, err := completion.NewClient(completion.Options{
			APIBase: cfg.Completion.APIBase,
			APIKey:  key,
			Model:   cfg.Completion.Model,
			Prompt:  cfg.Completion.Prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("init completion client: %w", err)
		}
		return client, nil
	default:
		return forward.LogConsumer{Log: logging.New("forward")}, nil
	}
}

func (p *pipeline) start() {
	// The worker outlives ctx so shutdown can drain it.
	p.adapter.Start(context.Background())
	go p.manager.Connect()
}

// shutdown closes the connection, stops pending reconnects, drains the
// forward queue and clears the forward cache.
func (p *pipeline) shutdown() {
	if err := p.manager.Close(); err != nil {
		p.log.WithError(err).Debug("close transport")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.adapter.Stop(ctx); err != nil {
		p.log.WithError(err).Warn("forward queue did not drain before shutdown")
	}

	p.cache.Reset()
	p.closeStore()
}

func (p *pipeline) closeStore() {
	if p.kv == nil {
		return
	}
	if err := p.kv.Close(); err != nil {
		p.log.WithError(err).Warn("close forward cache")
	}
	p.kv = nil
}
