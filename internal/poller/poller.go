// Package poller keeps the topology graph in step with the border router.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miguelemosreverte/otbr-web/internal/metrics"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

// Source provides the two responses a graph is built from.
type Source interface {
	NodeInformation(ctx context.Context) (*topology.NodeInfo, error)
	Diagnostics(ctx context.Context) ([]topology.DiagnosticRecord, error)
}

// subscriberBuffer is the number of graphs queued per subscriber before
// newer ones are dropped.
const subscriberBuffer = 4

// Poller fetches node information and diagnostics as a pair and builds one
// graph per successful pair.
type Poller struct {
	source  Source
	tracker *topology.Tracker
	metrics *metrics.Registry
	store   *store.Store
	logger  *store.Logger

	// serializes builds
	buildMu sync.Mutex

	mu          sync.RWMutex
	subscribers map[chan *topology.Graph]struct{}
	lastErr     error
	lastSuccess time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithMetrics records fetch and build metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(p *Poller) { p.metrics = r }
}

// WithSnapshots persists every built graph into s.
func WithSnapshots(s *store.Store) Option {
	return func(p *Poller) { p.store = s }
}

// WithLogger replaces the default stdout logger.
func WithLogger(l *store.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a poller that publishes into tracker.
func New(source Source, tracker *topology.Tracker, opts ...Option) *Poller {
	p := &Poller{
		source:      source,
		tracker:     tracker,
		logger:      store.NewLogger(nil, "poller"),
		subscribers: make(map[chan *topology.Graph]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh fetches both responses concurrently and, when both succeed, builds
// and publishes a new graph. A failed fetch leaves the previous graph in place.
func (p *Poller) Refresh(ctx context.Context) (*topology.Graph, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	var (
		info    *topology.NodeInfo
		records []topology.DiagnosticRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		info, err = p.source.NodeInformation(gctx)
		p.recordFetch("/node_information", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to fetch node information: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		records, err = p.source.Diagnostics(gctx)
		p.recordFetch("/topology", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to fetch diagnostics: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		p.setResult(err)
		if p.metrics != nil {
			p.metrics.RecordBuildFailure()
		}
		p.logger.WithField("error", err.Error()).Warn("Refresh failed")
		return nil, err
	}

	start := time.Now()
	graph := topology.Build(info, records)
	elapsed := time.Since(start)

	routerLinks, childLinks := graph.CountLinks()
	if p.metrics != nil {
		p.metrics.RecordBuild(elapsed, graph.RouterCount, len(graph.Nodes), routerLinks, childLinks)
	}

	p.tracker.Update(graph)
	p.setResult(nil)
	p.logger.Debug("Built topology: %d routers, %d nodes, %d links", graph.RouterCount, len(graph.Nodes), len(graph.Links))

	if p.store != nil {
		p.persist(graph)
	}

	current := p.tracker.Current()
	p.publish(current)
	return current, nil
}

func (p *Poller) recordFetch(endpoint string, d time.Duration, err error) {
	if p.metrics != nil {
		p.metrics.RecordFetch(endpoint, d, err)
	}
}

func (p *Poller) persist(graph *topology.Graph) {
	data, err := json.Marshal(graph)
	if err != nil {
		p.logger.Error("Failed to encode snapshot: %v", err)
		return
	}
	_, err = p.store.WriteSnapshot(store.Snapshot{
		NetworkName: graph.NetworkName,
		LeaderHex:   graph.LeaderHex,
		RouterCount: graph.RouterCount,
		NodeCount:   len(graph.Nodes),
		LinkCount:   len(graph.Links),
	}, data)
	if err != nil {
		p.logger.Error("Failed to write snapshot: %v", err)
	}
}

func (p *Poller) setResult(err error) {
	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.lastSuccess = time.Now()
	}
	p.mu.Unlock()
}

// LastError returns the error of the latest refresh, nil after a success.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// LastSuccess returns the time of the latest successful refresh.
func (p *Poller) LastSuccess() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSuccess
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("Polling border router every %s", interval)

	p.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Subscribe returns a channel receiving every new graph.
func (p *Poller) Subscribe() chan *topology.Graph {
	ch := make(chan *topology.Graph, subscriberBuffer)
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (p *Poller) Unsubscribe(ch chan *topology.Graph) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[ch]; ok {
		delete(p.subscribers, ch)
		close(ch)
	}
}

// Publish pushes the tracker's current graph to all subscribers, for use
// after the selection changes.
func (p *Poller) Publish() {
	if g := p.tracker.Current(); g != nil {
		p.publish(g)
	}
}

func (p *Poller) publish(g *topology.Graph) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.subscribers {
		select {
		case ch <- g:
		default:
			// Subscriber is slow, skip
		}
	}
}
