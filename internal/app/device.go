package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/okian/scramble/internal/adapters/http/client"
	"github.com/okian/scramble/internal/adapters/mq/pending"
	"github.com/okian/scramble/internal/adapters/mq/queue"
	"github.com/okian/scramble/internal/adapters/mq/worker"
	"github.com/okian/scramble/internal/connectivity"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/submission"
	"github.com/okian/scramble/pkg/logger"
)

const (
	defaultProbeInterval  = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultWorkerCount    = 4
	defaultQueueSize      = 256
	defaultPendingPath    = "pending.db"
)

// Device wires one scorer's components: the server client, the durable
// pending queue, the connectivity monitor, the submission engine and the
// workers that deliver intents off the input path.
type Device struct {
	mu sync.Mutex

	client  *client.Client
	pending *pending.SQLiteQueue
	monitor *connectivity.Monitor
	engine  *submission.Engine
	intents *queue.InMemoryQueue
	pool    *worker.Pool
	board   *leaderboard.Aggregator

	serverURL      string
	pendingPath    string
	probeInterval  time.Duration
	requestTimeout time.Duration
	syncedTTL      time.Duration
	workerCount    int
	queueSize      int

	started bool
	cancel  context.CancelFunc
	watch   chan struct{}

	logger logger.Logger
}

// DeviceOption applies a configuration option to the Device.
type DeviceOption func(*Device)

// WithDeviceLogger sets a custom logger for the device.
func WithDeviceLogger(l logger.Logger) DeviceOption {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPendingPath sets the pending queue file.
func WithPendingPath(path string) DeviceOption {
	return func(d *Device) {
		if path != "" {
			d.pendingPath = path
		}
	}
}

// WithProbeInterval sets how often server reachability is probed.
func WithProbeInterval(interval time.Duration) DeviceOption {
	return func(d *Device) {
		if interval > 0 {
			d.probeInterval = interval
		}
	}
}

// WithRequestTimeout bounds every request to the server.
func WithRequestTimeout(timeout time.Duration) DeviceOption {
	return func(d *Device) {
		if timeout > 0 {
			d.requestTimeout = timeout
		}
	}
}

// WithSyncedTTL sets how long the synced indicator stays raised.
func WithSyncedTTL(ttl time.Duration) DeviceOption {
	return func(d *Device) {
		if ttl > 0 {
			d.syncedTTL = ttl
		}
	}
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) DeviceOption {
	return func(d *Device) {
		if count > 0 {
			d.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the in-memory intent queue.
func WithQueueSize(size int) DeviceOption {
	return func(d *Device) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// NewDevice builds a device talking to serverURL. Nothing runs until Start.
func NewDevice(serverURL string, opts ...DeviceOption) (*Device, error) {
	d := &Device{
		serverURL:      serverURL,
		pendingPath:    defaultPendingPath,
		probeInterval:  defaultProbeInterval,
		requestTimeout: defaultRequestTimeout,
		workerCount:    defaultWorkerCount,
		queueSize:      defaultQueueSize,
		logger:         logger.Get().Named("device"),
	}
	for _, opt := range opts {
		opt(d)
	}

	c, err := client.New(serverURL,
		client.WithTimeout(d.requestTimeout),
		client.WithLogger(d.logger.Named("client")),
	)
	if err != nil {
		return nil, err
	}
	d.client = c
	return d, nil
}

// Start opens the pending queue and starts probing, draining and delivering.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	q, err := pending.Open(d.pendingPath, pending.WithLogger(d.logger.Named("pending")))
	if err != nil {
		return errors.Wrap(err, "open pending queue")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.pending = q
	d.monitor = connectivity.NewMonitor(false)
	d.engine = submission.New(d.client, q, d.monitor,
		submission.WithLogger(d.logger.Named("submission")),
		submission.WithSyncedTTL(d.syncedTTL),
	)
	d.intents = queue.NewInMemoryQueue(queue.WithCapacity(d.queueSize))
	d.pool = worker.NewPool(d.workerCount, d.intents, d.engine,
		worker.WithLogger(d.logger.Named("worker")),
	)
	d.cancel = cancel
	d.watch = make(chan struct{})

	go func() {
		defer close(d.watch)
		connectivity.Watch(runCtx, d.monitor, d.client, d.probeInterval)
	}()
	d.engine.Start(runCtx)
	d.pool.Start(runCtx)
	d.started = true

	d.logger.Info(ctx, "scorer device started",
		logger.String("server", d.serverURL),
		logger.String("pending", d.pendingPath),
		logger.Int("workers", d.workerCount),
	)
	return nil
}

// Engine returns the submission engine. Start must have succeeded.
func (d *Device) Engine() *submission.Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine
}

// Client returns the server client.
func (d *Device) Client() *client.Client {
	return d.client
}

// Online reports the last probe result.
func (d *Device) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.monitor != nil && d.monitor.Online()
}

// Submit applies the score optimistically and hands delivery to the
// workers. When the intent queue refuses it the delivery runs inline.
func (d *Device) Submit(ctx context.Context, teamID string, hole, strokes int) error {
	eng := d.Engine()
	if eng == nil {
		return ErrNotStarted
	}
	sub, err := eng.Prepare(teamID, hole, strokes)
	if err != nil {
		return err
	}
	if err := d.intents.Enqueue(ctx, sub); err != nil {
		d.logger.Warn(ctx, "intent queue refused submission, delivering inline",
			logger.Int("hole", hole),
			logger.Error(err),
		)
		return eng.Deliver(ctx, sub)
	}
	return nil
}

// Leaderboard starts a live leaderboard fed by the server's change streams.
// The caller stops it.
func (d *Device) Leaderboard(ctx context.Context, c *course.Course, opts ...leaderboard.RankOption) (*leaderboard.Aggregator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.board != nil {
		return d.board, nil
	}
	board := leaderboard.NewAggregator(d.client, c,
		leaderboard.WithLogger(d.logger.Named("leaderboard")),
		leaderboard.WithRankOptions(opts...),
	)
	if err := board.Start(ctx); err != nil {
		return nil, err
	}
	d.board = board
	return board, nil
}

// Stop delivers intents already queued, then stops every component. Entries
// that could not be delivered stay in the pending queue for the next run.
func (d *Device) Stop(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}
	if err := d.pool.Shutdown(ctx); err != nil {
		d.logger.Warn(ctx, "intent delivery cut short", logger.Error(err))
	}
	if d.board != nil {
		d.board.Stop()
		d.board = nil
	}
	d.cancel()
	<-d.watch
	d.engine.Stop()
	if err := d.pending.Close(); err != nil {
		d.logger.Error(ctx, "close pending queue failed", logger.Error(err))
	}
	d.started = false
	d.logger.Info(ctx, "scorer device stopped")
}
