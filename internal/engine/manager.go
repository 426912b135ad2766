package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safexstack/safex-monitor/internal/cache"
	"github.com/safexstack/safex-monitor/internal/escalation"
	"github.com/safexstack/safex-monitor/internal/events"
	"github.com/safexstack/safex-monitor/internal/models"
	"github.com/safexstack/safex-monitor/internal/patterns"
	"github.com/safexstack/safex-monitor/internal/scoring"
	"github.com/safexstack/safex-monitor/internal/source"
	"github.com/safexstack/safex-monitor/internal/utils"
)

// ControlAPI extends the run loop's control-plane needs with configuration
// fetching done at activation time.
type ControlAPI interface {
	ControlPlane
	FetchFeedConfig(ctx context.Context, feedID string) (models.FeedRuntimeConfig, error)
}

// FrameStore both persists live frames and rehydrates them for analysis.
type FrameStore interface {
	FrameSink
	escalation.FrameSource
}

// ClipUploader archives assembled clips as alert evidence.
type ClipUploader interface {
	Upload(ctx context.Context, feedID, segmentID string, clip []byte) (string, error)
}

// ManagerDeps bundles the shared collaborators all feeds draw on.
type ManagerDeps struct {
	Control    ControlAPI
	Classifier scoring.ClassifyClient
	Analyzer   escalation.AnalyzeClient
	Notifier   escalation.Notifier
	Frames     FrameStore
	Clips      ClipUploader
	Events     events.Publisher
	Cache      cache.Provider
	CacheTTL   time.Duration
	OpenSource source.Opener
	Defaults   models.FeedRuntimeConfig
	Logger     *slog.Logger
}

type feedHandle struct {
	cfg    models.FeedRuntimeConfig
	loop   *RunLoop
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the set of active feed run loops. One goroutine per feed;
// all admin operations go through the manager's lock.
type Manager struct {
	deps    ManagerDeps
	miner   *patterns.Miner
	latency *utils.LatencyTracker
	logger  *slog.Logger

	mu    sync.Mutex
	feeds map[string]*feedHandle
}

// NewManager wires a Manager over shared infrastructure.
func NewManager(deps ManagerDeps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.NewNoop()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopProvider{}
	}
	if deps.OpenSource == nil {
		deps.OpenSource = func(url string) source.Source { return source.NewMJPEGSource(url) }
	}
	return &Manager{
		deps:    deps,
		miner:   patterns.NewMiner(deps.Logger),
		latency: utils.NewLatencyTracker(256),
		logger:  deps.Logger,
		feeds:   make(map[string]*feedHandle),
	}
}

// RunFeedMonitor runs one feed's pipeline on the calling goroutine with an
// already-resolved configuration, blocking until the feed deactivates, the
// stream dies, or ctx is cancelled. StartFeed is the managed variant.
func (m *Manager) RunFeedMonitor(ctx context.Context, cfg models.FeedRuntimeConfig) error {
	cfg = cfg.WithDefaults(m.deps.Defaults)
	if err := cfg.Validate(); err != nil {
		return utils.NewAppError("engine.RunFeedMonitor", "invalid feed config", err)
	}
	return m.buildLoop(cfg).Run(ctx)
}

// StartFeed activates monitoring for one feed: fetches its configuration,
// validates it, and launches the run loop. Configuration problems fail here,
// before any frame is read.
func (m *Manager) StartFeed(ctx context.Context, feedID string) error {
	m.mu.Lock()
	if _, running := m.feeds[feedID]; running {
		m.mu.Unlock()
		return utils.NewAppError("engine.StartFeed", fmt.Sprintf("feed %s already monitored", feedID), nil)
	}
	m.mu.Unlock()

	started := time.Now()
	cfg, err := m.deps.Control.FetchFeedConfig(ctx, feedID)
	if err != nil {
		return utils.NewAppError("engine.StartFeed", "fetch feed config", err)
	}
	cfg = cfg.WithDefaults(m.deps.Defaults)
	if err := cfg.Validate(); err != nil {
		return utils.NewAppError("engine.StartFeed", "invalid feed config", err)
	}
	m.latency.Observe(time.Since(started))

	loop := m.buildLoop(cfg)

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &feedHandle{cfg: cfg, loop: loop, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, running := m.feeds[feedID]; running {
		m.mu.Unlock()
		cancel()
		return utils.NewAppError("engine.StartFeed", fmt.Sprintf("feed %s already monitored", feedID), nil)
	}
	m.feeds[feedID] = handle
	m.mu.Unlock()

	go func() {
		defer close(handle.done)
		if err := loop.Run(runCtx); err != nil {
			m.logger.Error("feed run loop exited",
				slog.String("feed_id", feedID), slog.Any("error", err))
		}
		m.mu.Lock()
		if m.feeds[feedID] == handle {
			delete(m.feeds, feedID)
		}
		m.mu.Unlock()
	}()

	m.logger.Info("feed activated",
		slog.String("feed_id", feedID),
		slog.Duration("activation_p95", m.latency.Percentile(95)))
	return nil
}

func (m *Manager) buildLoop(cfg models.FeedRuntimeConfig) *RunLoop {
	scorer := scoring.NewScorer(m.deps.Classifier, cfg.Instruction, cfg.FrameSkip, cfg.HistoryDepth, m.logger)
	analyzer := escalation.NewAnalyzer(m.deps.Analyzer, m.deps.Frames, m.deps.Clips, m.logger)
	dispatcher := escalation.NewDispatcher(m.deps.Notifier, m.logger)

	return NewRunLoop(cfg, RunLoopDeps{
		Source:     m.deps.OpenSource(cfg.SourceURL),
		Scorer:     scorer,
		Buffer:     scoring.NewEventBuffer(cfg.WindowSeconds, cfg.FPS),
		Acc:        NewAccumulator(cfg.TriggerThreshold, cfg.SegmentLength, PruneParams{}, m.logger),
		Analyzer:   analyzer,
		Dispatcher: dispatcher,
		Control:    m.deps.Control,
		Frames:     m.deps.Frames,
		Events:     m.deps.Events,
		Cache:      m.deps.Cache,
		CacheTTL:   m.deps.CacheTTL,
		Logger:     m.logger,
	})
}

// StopFeed cancels a feed's run loop and waits for it to wind down.
func (m *Manager) StopFeed(feedID string) error {
	m.mu.Lock()
	handle, ok := m.feeds[feedID]
	if ok {
		delete(m.feeds, feedID)
	}
	m.mu.Unlock()
	if !ok {
		return utils.NewAppError("engine.StopFeed", fmt.Sprintf("feed %s not monitored", feedID), nil)
	}

	handle.cancel()
	<-handle.done
	if err := m.deps.Cache.Del(context.Background(), windowKey(feedID)); err != nil {
		m.logger.Debug("window snapshot delete failed",
			slog.String("feed_id", feedID), slog.Any("error", err))
	}
	m.logger.Info("feed stopped", slog.String("feed_id", feedID))
	return nil
}

// ListFeeds returns the ids of all currently monitored feeds.
func (m *Manager) ListFeeds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.feeds))
	for id := range m.feeds {
		ids = append(ids, id)
	}
	return ids
}

// FeedReport combines loop counters with mined anomaly-tag patterns.
type FeedReport struct {
	FeedStats
	Patterns []patterns.TagPattern `json:"patterns"`
}

// FeedStats reports one monitored feed's counters and recurring tags. For a
// feed whose loop has exited (stream death, deactivation) the last cached
// window snapshot is served until its TTL expires.
func (m *Manager) FeedStats(ctx context.Context, feedID string) (FeedReport, error) {
	m.mu.Lock()
	handle, ok := m.feeds[feedID]
	m.mu.Unlock()
	if !ok {
		return m.cachedReport(ctx, feedID)
	}
	return FeedReport{
		FeedStats: handle.loop.Stats(),
		Patterns:  m.miner.Mine(handle.loop.HighRiskFrames(), 5),
	}, nil
}

func (m *Manager) cachedReport(ctx context.Context, feedID string) (FeedReport, error) {
	notMonitored := utils.NewAppError("engine.FeedStats", fmt.Sprintf("feed %s not monitored", feedID), nil)
	data, err := m.deps.Cache.Get(ctx, windowKey(feedID))
	if err != nil {
		return FeedReport{}, notMonitored
	}
	var window models.WindowStats
	if err := json.Unmarshal(data, &window); err != nil {
		return FeedReport{}, notMonitored
	}
	return FeedReport{FeedStats: FeedStats{FeedID: feedID, Window: window}}, nil
}

// Shutdown stops every feed concurrently and blocks until all loops exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make([]*feedHandle, 0, len(m.feeds))
	for id, handle := range m.feeds {
		handles = append(handles, handle)
		delete(m.feeds, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, handle := range handles {
		handle := handle
		g.Go(func() error {
			handle.cancel()
			<-handle.done
			return nil
		})
	}
	_ = g.Wait()
}
