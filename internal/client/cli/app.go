package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/cache"
	"github.com/dmitrijs2005/gutscan/internal/client/client"
	"github.com/dmitrijs2005/gutscan/internal/client/config"
	"github.com/dmitrijs2005/gutscan/internal/client/netmon"
	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/client/services"
	"github.com/dmitrijs2005/gutscan/internal/client/statusapi"
	"github.com/dmitrijs2005/gutscan/internal/client/syncer"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
	"github.com/dmitrijs2005/gutscan/internal/logging"
)

// App owns every client component and their lifecycle.
type App struct {
	cfg    *config.Config
	log    logging.Logger
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time

	gw      persistence.Gateway
	enc     *cryptox.FieldEncryptor
	remote  client.Client
	cache   *cache.Cache
	monitor *netmon.Monitor
	sync    *syncer.Coordinator
	foods   *services.FoodService
	scans   *services.ScanService
	status  *statusapi.Server
}

// NewApp opens the local store, unlocks the encryption key and connects the
// remote client. The secret comes from the config or, when empty, from the
// terminal.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	gw, err := persistence.Open(ctx, persistence.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		if secret, err = GetSecret(os.Stdout); err != nil {
			_ = gw.Close()
			return nil, err
		}
	}
	enc, err := services.NewKeyService(gw).Unlock(ctx, secret)
	common.WipeByteArray(secret)
	if err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("failed to unlock local store: %w", err)
	}

	if cfg.DeviceID == "" {
		if cfg.DeviceID, err = services.DeviceID(ctx, gw); err != nil {
			enc.Close()
			_ = gw.Close()
			return nil, err
		}
	}

	remote, err := client.NewGRPCClient(cfg.ServerAddr, cfg.AccessToken, cfg.DeviceID)
	if err != nil {
		enc.Close()
		_ = gw.Close()
		return nil, err
	}

	return newApp(cfg, gw, enc, remote, logger, os.Stdin, os.Stdout), nil
}

func newApp(cfg *config.Config, gw persistence.Gateway, enc *cryptox.FieldEncryptor, remote client.Client,
	logger logging.Logger, in io.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.Nop()
	}

	c := cache.New(gw, enc, cfg.SensitiveFields, logger)
	mon := netmon.New(remote, netmon.Options{
		ProbeInterval:  cfg.ProbeInterval,
		ProbeTimeout:   cfg.ProbeTimeout,
		DebounceWindow: cfg.DebounceWindow,
	}, logger)
	coord := syncer.New(mon, c, remote, syncer.Options{
		QualityThreshold: cfg.QualityThreshold,
		MaxAttempts:      cfg.MaxAttempts,
		SubmitTimeout:    cfg.SubmitTimeout,
		SyncInterval:     cfg.SyncInterval,
		Backoff: syncer.Policy{
			Base:         cfg.BackoffBase,
			Multiplier:   cfg.BackoffMultiplier,
			MaxDoublings: cfg.BackoffMaxDoublings,
			Cap:          cfg.BackoffCap,
		},
	}, logger)

	a := &App{
		cfg:     cfg,
		log:     logger.With("module", "cli"),
		in:      in,
		reader:  bufio.NewReader(in),
		out:     out,
		now:     time.Now,
		gw:      gw,
		enc:     enc,
		remote:  remote,
		cache:   c,
		monitor: mon,
		sync:    coord,
		foods:   services.NewFoodService(remote, c, mon, logger),
		scans:   services.NewScanService(c, coord, cfg.SensitiveFields, logger),
	}
	if cfg.StatusAddr != "" {
		a.status = statusapi.NewServer(cfg.StatusAddr, statusapi.NewRouter(mon, coord, c, logger), logger)
	}
	return a
}

// Start recovers interrupted submissions, applies retention and starts the
// background components.
func (a *App) Start(ctx context.Context) error {
	n, err := a.cache.RecoverInFlight(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info(ctx, "recovered interrupted submissions", "count", n)
	}
	if _, err := a.cache.PurgeStale(ctx, a.now().Add(-a.cfg.Retention)); err != nil {
		a.log.Warn(ctx, "retention purge failed", "error", err)
	}

	a.monitor.Start(ctx)
	a.sync.Start(ctx)
	if a.status != nil {
		if err := a.status.Start(ctx); err != nil {
			return fmt.Errorf("failed to start status api: %w", err)
		}
	}
	return nil
}

// Run starts the app and blocks in the REPL until the user exits or ctx is
// done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Welcome to gutscan (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, bufio.NewScanner(a.reader))
	return nil
}

// Shutdown stops background work and releases the store and key. Safe to
// call once after Run returns.
func (a *App) Shutdown(ctx context.Context) {
	if a.status != nil {
		if err := a.status.Shutdown(ctx); err != nil {
			a.log.Warn(ctx, "status api shutdown", "error", err)
		}
	}
	a.sync.Shutdown()
	a.monitor.Shutdown()
	if err := a.remote.Close(); err != nil {
		a.log.Warn(ctx, "closing remote client", "error", err)
	}
	a.enc.Close()
	if err := a.gw.Close(); err != nil {
		a.log.Warn(ctx, "closing local store", "error", err)
	}
}

func (a *App) statusLine() string {
	st := a.monitor.Status()
	if !st.Reachable {
		return "(offline)"
	}
	return fmt.Sprintf("(online q=%d)", st.QualityScore)
}
