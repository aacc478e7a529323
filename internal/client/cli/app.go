package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/cart"
	"github.com/dmitrijs2005/edumarket/internal/client/client"
	"github.com/dmitrijs2005/edumarket/internal/client/config"
	"github.com/dmitrijs2005/edumarket/internal/client/credentials"
	"github.com/dmitrijs2005/edumarket/internal/client/geo"
	"github.com/dmitrijs2005/edumarket/internal/client/monitor"
	"github.com/dmitrijs2005/edumarket/internal/client/services"
	"github.com/dmitrijs2005/edumarket/internal/client/session"
	"github.com/dmitrijs2005/edumarket/internal/client/storage"
	"github.com/dmitrijs2005/edumarket/internal/common"
	"github.com/dmitrijs2005/edumarket/internal/logging"
)

// App wires the session subsystem together and runs the REPL on top of it.
type App struct {
	config *config.Config
	log    logging.Logger

	db       *client.Database
	jar      *credentials.Jar
	store    *storage.Store
	session  *session.Store
	api      *client.HTTPClient
	auth     *services.AuthService
	resolver *cart.Resolver
	syncer   *cart.Syncer
	monitor  *monitor.Monitor
	geo      *geo.Locator
	nav      *navigator

	reader *bufio.Reader
	out    io.Writer

	// foreground is set while a user command runs, so confirmations may
	// prompt on stdin instead of deferring to the user.
	foreground atomic.Bool

	metrics   *http.Server
	closeLog  func() error
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewApp opens the local database and builds every component from c.
// Close releases what NewApp acquired.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log, closeLog, err := logging.New(logging.Options{
		Backend: c.LogBackend,
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		File:    c.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		_ = closeLog()
		return nil, err
	}

	handoff, err := cart.ParseHandoff(c.CartHandoff)
	if err != nil {
		_ = db.Close()
		_ = closeLog()
		return nil, err
	}

	a := &App{
		config:   c,
		log:      log,
		db:       db,
		nav:      newNavigator(common.HomeRoute),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		closeLog: closeLog,
	}

	a.jar = credentials.NewJar(db.DB, log, credentials.Options{
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
		Secure:     c.IsProduction(),
	})
	a.store = storage.New(db.Durable, log, storage.Options{QuotaBytes: c.StorageQuotaBytes})
	a.session = session.New(a.store, log)

	a.api, err = client.New(a.jar, client.Options{
		BaseURL:     c.APIBaseURL,
		Timeout:     c.RequestTimeout,
		ReadRetries: c.ReadRetries,
		Logger:      log,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.resolver = cart.NewResolver(db.Local, a.session, log, cart.WithHandoff(handoff))
	a.auth = services.NewAuthService(a.api, a.jar, a.session, log, services.Options{
		Target:    a.api.BaseURL(),
		Navigator: a.nav,
		Notifier:  notifier{},
		Cart:      a.resolver,
	})
	a.api.SetHooks(a.auth)

	a.syncer = cart.NewSyncer(a.resolver, a.api, a.session, c.CartSyncRate, log)
	a.monitor = monitor.New(a.store, log, monitor.Options{
		Interval: c.MonitorInterval,
		Confirm:  a.confirm,
		Reload:   a.reload,
	})
	a.geo = geo.NewLocator(log, geo.Options{
		Endpoint:       c.GeocoderURL,
		Timeout:        c.GeoTimeout,
		DefaultCountry: c.DefaultCountry,
	})

	return a, nil
}

// Start restores the session and launches background work: the cart
// watcher, the storage monitor and, when configured, the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	a.session.Hydrate(ctx)
	if err := a.session.WaitHydrated(ctx); err != nil {
		return err
	}

	if a.auth.Startup(ctx) {
		if _, err := a.auth.FetchProfile(ctx); err != nil {
			a.log.Warn(ctx, "profile not loaded", "error", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.syncer.Watch(ctx)
	}()

	a.monitor.Start(ctx)

	if a.config.MetricsAddr != "" {
		a.metrics = newMetricsServer(a.config.MetricsAddr)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
	}
	return nil
}

// Run starts the app and blocks in the REPL until the user exits or ctx is
// done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	printlnFn("Welcome to EduMarket CLI (type 'help' for commands)")
	if a.nav.CurrentRoute() == common.LoginRoute {
		printlnFn("You are not logged in. Type 'login' or 'register'.")
	}
	runREPL(ctx, a, a.getStatus, a.reader)

	cancel()
	a.wg.Wait()
	return nil
}

// Close stops background work and closes the database and log outputs. It
// is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.monitor != nil {
			a.monitor.Stop()
		}
		if a.metrics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = errors.Join(err, a.metrics.Shutdown(ctx))
			cancel()
		}
		if a.db != nil {
			err = errors.Join(err, a.db.Close())
		}
		if a.closeLog != nil {
			err = errors.Join(err, a.closeLog())
		}
	})
	return err
}

func (a *App) isLoggedIn() bool {
	return a.session.IsLoggedIn()
}

// confirm answers the storage monitor. Background checks cannot take over
// stdin from the REPL, so outside a user command the question is turned
// into a hint and the answer is no.
func (a *App) confirm(ctx context.Context, question string) bool {
	if !a.foreground.Load() {
		printlnFn("[!] " + question + " Run 'storage clear' to do it.")
		return false
	}
	answer, err := getSimpleText(a.reader, question+" [y/N]", a.out)
	if err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}

// reload rebuilds the session after the store was wiped. Credentials live
// outside the store, so a still valid login survives.
func (a *App) reload(ctx context.Context) {
	a.log.Warn(ctx, "reloading session after storage clear")
	a.session.Reset(ctx)
	a.auth.Startup(ctx)
	if err := a.syncer.Sync(ctx); err != nil {
		a.log.Debug(ctx, "cart sync after reload failed", "error", err)
	}
}
