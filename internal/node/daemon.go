// Package node implements the dashboard service daemon.
package node

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/config"
	"github.com/miguelemosreverte/otbr-web/internal/metrics"
	"github.com/miguelemosreverte/otbr-web/internal/poller"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
	"github.com/miguelemosreverte/otbr-web/internal/ui"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Lifecycle events written to the store.
const (
	EventStart = "START"
	EventStop  = "STOP"
)

const shutdownTimeout = 5 * time.Second

// Daemon polls a border router and serves the dashboard.
type Daemon struct {
	config    config.Config
	startTime time.Time

	store   *store.Store
	logger  *store.Logger
	metrics *metrics.Registry
	client  *cli.Client
	tracker *topology.Tracker
	poller  *poller.Poller
	server  *ui.Server

	pollerDone sync.WaitGroup

	// Shutdown
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// New validates cfg and creates a Daemon.
func New(cfg config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := cli.NewClient(cfg.BorderRouter, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create border router client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		config:    cfg,
		startTime: time.Now(),
		client:    client,
		tracker:   topology.NewTracker(),
		metrics:   metrics.NewRegistry(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Run starts the daemon and blocks until a signal arrives, Stop is called
// or the HTTP server fails.
func (d *Daemon) Run() error {
	log.Printf("[node] Starting otbr-web %s", Version)
	log.Printf("[node] Border router: %s", d.client.BaseURL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := d.initStorage(); err != nil {
		log.Printf("[node] Warning: failed to init storage: %v (continuing without history)", err)
	}

	d.logger = store.NewLogger(d.store, "node")
	if level, err := store.ParseLevel(d.config.LogLevel); err == nil {
		d.logger.SetLevel(level)
	}

	opts := []poller.Option{
		poller.WithMetrics(d.metrics),
		poller.WithLogger(d.logger.Component("poller")),
	}
	if d.store != nil && d.config.Snapshots {
		opts = append(opts, poller.WithSnapshots(d.store))
	}
	d.poller = poller.New(d.client, d.tracker, opts...)

	d.server = ui.NewServer(ui.Options{
		Listen:       d.config.Listen,
		BorderRouter: d.client.BaseURL(),
		Version:      Version,
		Router:       d.client,
		Poller:       d.poller,
		Tracker:      d.tracker,
		Store:        d.store,
		Metrics:      d.metrics,
		Logger:       d.logger.Component("ui"),
	})

	d.recordLifecycle(EventStart, "service started")

	d.pollerDone.Add(1)
	go func() {
		defer d.pollerDone.Done()
		d.poller.Run(d.ctx, d.config.PollInterval)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- d.server.Start()
	}()

	log.Printf("[node] Dashboard listening on %s", d.config.Listen)

	var (
		reason string
		runErr error
	)
	select {
	case sig := <-sigCh:
		log.Printf("[node] Received signal: %v", sig)
		reason = "signal: " + sig.String()
	case <-d.ctx.Done():
		log.Printf("[node] Context cancelled")
		reason = "stopped"
	case err := <-serverErr:
		reason = "server error"
		if err != nil {
			runErr = fmt.Errorf("dashboard server failed: %w", err)
			reason = err.Error()
		}
	}

	d.shutdown(reason)
	return runErr
}

// Stop asks Run to return.
func (d *Daemon) Stop() {
	d.cancel()
}

// Tracker returns the daemon's topology tracker.
func (d *Daemon) Tracker() *topology.Tracker {
	return d.tracker
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}

func (d *Daemon) initStorage() error {
	s, err := store.Open(d.config.DataDir, store.Options{
		SnapshotRetention: d.config.SnapshotRetention,
	})
	if err != nil {
		return err
	}
	d.store = s

	// Redirect log output to store
	log.SetOutput(store.NewLogWriter(d.store, "node", "INFO"))

	log.Printf("[store] Storage opened in %s", d.config.DataDir)
	return nil
}

func (d *Daemon) recordLifecycle(event, reason string) {
	if d.store == nil {
		return
	}
	if err := d.store.WriteLifecycleEvent(event, reason, d.Uptime().Seconds(), Version); err != nil {
		log.Printf("[node] Failed to record %s event: %v", event, err)
	}
}

// shutdown stops components in reverse start order.
func (d *Daemon) shutdown(reason string) {
	d.shutdownOnce.Do(func() {
		log.Printf("[node] Shutting down...")
		d.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			log.Printf("[node] Dashboard shutdown: %v", err)
		}

		d.pollerDone.Wait()
		d.recordLifecycle(EventStop, reason)

		if d.store != nil {
			log.SetOutput(os.Stderr)
			d.store.Close()
		}

		log.Printf("[node] Shutdown complete")
	})
}
