// Package submission applies score entries optimistically, delivers them to
// the score record store and falls back to the durable pending queue when
// the store cannot be reached.
package submission

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/okian/scramble/internal/adapters/mq/pending"
	"github.com/okian/scramble/internal/connectivity"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

const defaultSyncedTTL = 3 * time.Second

// Submission outcomes recorded in metrics.
const (
	outcomeConfirmed   = "confirmed"
	outcomeQueued      = "queued"
	outcomeQueueFailed = "queue_failed"
	outcomeSuperseded  = "superseded"
)

// Remote is the write side of the score record store.
type Remote interface {
	UpsertScore(ctx context.Context, teamID string, hole, strokes int) (model.Score, error)
	QueryScores(ctx context.Context, teamID string) ([]model.Score, error)
}

// State is the read-only view handed to the presentation layer.
type State struct {
	TeamID string
	// Scores holds the merged rows for TeamID ordered by hole.
	Scores  []model.Score
	Loading bool
	Saving  []int
	Online  bool
	// PendingCount counts queued entries for every team on this device.
	PendingCount int
	// TeamPending counts queued entries for TeamID, the ones Drain can confirm.
	TeamPending int
	Synced      bool
	Warning     string
}

// Engine owns the local score view for one device.
type Engine struct {
	remote    Remote
	queue     pending.Queue
	monitor   *connectivity.Monitor
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
	syncedTTL time.Duration

	mu       sync.Mutex
	teamID   string
	scores   map[model.ScoreKey]model.Score
	writeTS  map[model.ScoreKey]int64
	stamp    int64
	saving   map[model.ScoreKey]int
	locks    map[model.ScoreKey]*sync.Mutex
	loading  bool
	pending  int
	teamPend int
	synced   bool
	syncGen  uint64
	warning  string

	draining atomic.Bool

	obsMu     sync.Mutex
	observers map[uint64]chan State
	nextObs   uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine. The monitor is shared with whatever feeds it the
// platform reachability signal.
func New(remote Remote, queue pending.Queue, monitor *connectivity.Monitor, opts ...Option) *Engine {
	e := &Engine{
		remote:    remote,
		queue:     queue,
		monitor:   monitor,
		logger:    logger.Get().Named("submission"),
		now:       time.Now,
		newID:     uuid.NewString,
		syncedTTL: defaultSyncedTTL,
		scores:    make(map[model.ScoreKey]model.Score),
		writeTS:   make(map[model.ScoreKey]int64),
		saving:    make(map[model.ScoreKey]int),
		locks:     make(map[model.ScoreKey]*sync.Mutex),
		observers: make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start watches connectivity and drains the pending queue on every
// offline to online transition until ctx ends or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	transitions, unsubscribe := e.monitor.Subscribe()

	e.refreshPending(ctx)
	if e.monitor.Online() {
		e.drainLogged(ctx)
	}

	go func() {
		defer close(e.done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case tr, ok := <-transitions:
				if !ok {
					return
				}
				e.logger.Info(ctx, "connectivity changed", logger.Bool("online", tr.Online))
				e.notify()
				if tr.Online {
					e.reload(ctx)
				}
			}
		}
	}()
}

// Stop ends the connectivity watch and closes every observer channel.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.mu.Lock()
	e.syncGen++
	e.mu.Unlock()

	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	for id, ch := range e.observers {
		close(ch)
		delete(e.observers, id)
	}
}

// SelectTeam makes teamID the current team. Its stored rows are loaded when
// online and queued entries for the team are overlaid on top. If anything is
// queued and the store is reachable, the queue is drained. Rows are loaded
// again on every reconnect.
func (e *Engine) SelectTeam(ctx context.Context, teamID string) error {
	if teamID == "" {
		return ErrNoTeam
	}
	e.mu.Lock()
	e.teamID = teamID
	e.loading = true
	e.notifyLocked()
	e.mu.Unlock()

	e.load(ctx, teamID)
	return nil
}

// reload refreshes the current team after the store becomes reachable.
func (e *Engine) reload(ctx context.Context) {
	e.mu.Lock()
	team := e.teamID
	if team != "" {
		e.loading = true
		e.notifyLocked()
	}
	e.mu.Unlock()

	if team == "" {
		e.drainLogged(ctx)
		return
	}
	e.load(ctx, team)
}

func (e *Engine) load(ctx context.Context, teamID string) {
	e.mu.Lock()
	since := e.stamp
	e.mu.Unlock()

	var rows []model.Score
	if e.monitor.Online() {
		var err error
		if rows, err = e.remote.QueryScores(ctx, teamID); err != nil {
			e.logger.Warn(ctx, "load team scores failed", logger.String("team_id", teamID), logger.Error(err))
			metrics.RecordErrorByComponent("submission", "load_scores")
		}
	}
	items, qerr := e.queue.GetAll(ctx)
	if qerr != nil {
		e.logger.Error(ctx, "read pending queue failed", logger.Error(qerr))
	}

	queued := make(map[model.ScoreKey]model.PendingScore)
	for _, it := range items {
		if it.TeamID == teamID {
			queued[model.ScoreKey{TeamID: it.TeamID, HoleNumber: it.HoleNumber}] = it
		}
	}

	e.mu.Lock()
	for _, row := range rows {
		k := row.Key()
		// a local write made while the rows were in flight is newer
		if _, ok := queued[k]; ok || e.saving[k] > 0 || e.writeTS[k] > since {
			e.adoptIdentityLocked(row)
			continue
		}
		e.scores[k] = row
	}
	for k, it := range queued {
		e.overlayLocked(k, it)
	}
	if e.teamID == teamID {
		e.loading = false
	}
	if qerr == nil {
		e.setPendingLocked(items)
	}
	e.notifyLocked()
	e.mu.Unlock()

	if len(queued) > 0 && e.monitor.Online() {
		e.drainLogged(ctx)
	}
}

// overlayLocked applies a queued entry to the local view.
func (e *Engine) overlayLocked(k model.ScoreKey, it model.PendingScore) {
	if it.Timestamp < e.writeTS[k] {
		return
	}
	ts := time.UnixMilli(it.Timestamp)
	cur, ok := e.scores[k]
	if !ok {
		cur = model.Score{ID: e.newID(), TeamID: k.TeamID, HoleNumber: k.HoleNumber, CreatedAt: ts}
	}
	cur.Strokes = it.Strokes
	cur.UpdatedAt = ts
	e.scores[k] = cur
	e.writeTS[k] = it.Timestamp
	if it.Timestamp > e.stamp {
		e.stamp = it.Timestamp
	}
}

// Submit records strokes for (teamID, hole) and delivers them. The only error
// returned is ErrQueueUnavailable, a warning: the local update stands.
func (e *Engine) Submit(ctx context.Context, teamID string, hole, strokes int) error {
	sub, err := e.Prepare(teamID, hole, strokes)
	if err != nil {
		return err
	}
	return e.Deliver(ctx, sub)
}

// Prepare applies the optimistic update and returns the intent to deliver.
// The update is visible to observers before any I/O happens.
func (e *Engine) Prepare(teamID string, hole, strokes int) (model.Submission, error) {
	if teamID == "" {
		return model.Submission{}, ErrNoTeam
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	k := model.ScoreKey{TeamID: teamID, HoleNumber: hole}
	now := e.now()
	stamp := now.UnixMilli()
	if stamp <= e.stamp {
		stamp = e.stamp + 1
	}
	e.stamp = stamp

	cur, ok := e.scores[k]
	if !ok {
		cur = model.Score{ID: e.newID(), TeamID: teamID, HoleNumber: hole, CreatedAt: now}
	}
	cur.Strokes = strokes
	cur.UpdatedAt = now
	e.scores[k] = cur
	e.writeTS[k] = stamp
	e.saving[k]++
	e.notifyLocked()

	return model.Submission{TeamID: teamID, HoleNumber: hole, Strokes: strokes, Seq: stamp}, nil
}

// Deliver sends a prepared intent to the store, or to the pending queue when
// offline or when the store call fails. Deliveries for the same key are
// serialized; different keys proceed concurrently.
func (e *Engine) Deliver(ctx context.Context, sub model.Submission) error {
	k := model.ScoreKey{TeamID: sub.TeamID, HoleNumber: sub.HoleNumber}
	lock := e.keyLock(k)
	lock.Lock()
	defer lock.Unlock()
	defer e.doneSaving(k)

	if e.latestStamp(k) > sub.Seq {
		// a later write for this key will be delivered by its own call
		metrics.RecordSubmission(outcomeSuperseded)
		return nil
	}

	item := model.NewPendingScore(sub.TeamID, sub.HoleNumber, sub.Strokes, sub.Seq)
	if !e.monitor.Online() {
		return e.enqueue(ctx, item)
	}

	start := time.Now()
	row, err := e.remote.UpsertScore(ctx, sub.TeamID, sub.HoleNumber, sub.Strokes)
	metrics.RecordUpsertLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		e.logger.Warn(ctx, "upsert failed, queueing",
			logger.String("key", item.Key),
			logger.Error(err),
		)
		return e.enqueue(ctx, item)
	}

	e.confirm(ctx, row, sub.Seq)
	metrics.RecordSubmission(outcomeConfirmed)
	return nil
}

// Drain replays queued entries for the current team against the store, one
// at a time. Only one drain runs at a time. Returns the number confirmed.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	if !e.draining.CompareAndSwap(false, true) {
		metrics.RecordDrainSuppressed()
		return 0, ErrDrainInProgress
	}
	defer e.draining.Store(false)

	team := e.currentTeam()
	if team == "" {
		return 0, nil
	}
	items, err := e.queue.GetAll(ctx)
	if err != nil {
		e.setWarning("pending queue unreadable: " + err.Error())
		return 0, errors.Mark(errors.Wrap(err, "drain"), ErrQueueUnavailable)
	}

	confirmed, failed := 0, 0
	for _, it := range items {
		if it.TeamID != team {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if e.drainOne(ctx, it) {
			confirmed++
		} else {
			failed++
		}
	}
	metrics.RecordDrain(confirmed, failed)
	e.refreshPending(ctx)
	if confirmed > 0 {
		e.markSynced()
	}
	e.logger.Info(ctx, "drain finished",
		logger.String("team_id", team),
		logger.Int("confirmed", confirmed),
		logger.Int("failed", failed),
	)
	return confirmed, nil
}

func (e *Engine) drainOne(ctx context.Context, it model.PendingScore) bool {
	k := model.ScoreKey{TeamID: it.TeamID, HoleNumber: it.HoleNumber}
	lock := e.keyLock(k)
	lock.Lock()
	defer lock.Unlock()

	// send the newest value this device knows for the key
	e.mu.Lock()
	if ts := e.writeTS[k]; ts > it.Timestamp {
		if cur, ok := e.scores[k]; ok {
			it.Strokes = cur.Strokes
			it.Timestamp = ts
		}
	}
	e.mu.Unlock()

	row, err := e.remote.UpsertScore(ctx, it.TeamID, it.HoleNumber, it.Strokes)
	if err != nil {
		e.logger.Warn(ctx, "drain upsert failed, keeping entry",
			logger.String("key", it.Key),
			logger.Error(err),
		)
		return false
	}
	e.confirm(ctx, row, it.Timestamp)
	return true
}

// confirm merges an authoritative row and drops queued entries it covers.
func (e *Engine) confirm(ctx context.Context, row model.Score, stamp int64) {
	k := row.Key()
	e.mu.Lock()
	if latest, ok := e.writeTS[k]; !ok || latest <= stamp {
		e.scores[k] = row
		e.writeTS[k] = stamp
	} else {
		e.adoptIdentityLocked(row)
	}
	e.notifyLocked()
	e.mu.Unlock()

	if _, err := e.queue.DeleteThrough(ctx, k.String(), stamp); err != nil {
		e.logger.Error(ctx, "remove confirmed entry failed", logger.String("key", k.String()), logger.Error(err))
	}
	e.refreshPending(ctx)
}

// adoptIdentityLocked takes the store's id and creation time while keeping
// a newer local strokes value.
func (e *Engine) adoptIdentityLocked(row model.Score) {
	k := row.Key()
	cur, ok := e.scores[k]
	if !ok {
		e.scores[k] = row
		return
	}
	cur.ID = row.ID
	cur.CreatedAt = row.CreatedAt
	e.scores[k] = cur
}

func (e *Engine) enqueue(ctx context.Context, item model.PendingScore) error {
	if err := e.queue.Put(ctx, item); err != nil {
		metrics.RecordSubmission(outcomeQueueFailed)
		metrics.RecordErrorByComponent("submission", "queue_storage")
		metrics.RecordErrorByType("queue_storage", "high")
		e.logger.Error(ctx, "score could not be queued, delivery not guaranteed",
			logger.String("key", item.Key),
			logger.Int("strokes", item.Strokes),
			logger.Error(err),
		)
		e.setWarning("score for hole " + strconv.Itoa(item.HoleNumber) + " saved on screen only: " + err.Error())
		return errors.Mark(errors.Wrapf(err, "queue %s", item.Key), ErrQueueUnavailable)
	}
	metrics.RecordSubmission(outcomeQueued)
	e.mu.Lock()
	e.warning = ""
	e.mu.Unlock()
	e.refreshPending(ctx)
	return nil
}

func (e *Engine) refreshPending(ctx context.Context) {
	items, err := e.queue.GetAll(ctx)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.setPendingLocked(items)
	e.notifyLocked()
	e.mu.Unlock()
}

func (e *Engine) setPendingLocked(items []model.PendingScore) {
	e.pending = len(items)
	e.teamPend = 0
	for _, it := range items {
		if it.TeamID == e.teamID {
			e.teamPend++
		}
	}
}

func (e *Engine) markSynced() {
	e.mu.Lock()
	e.synced = true
	e.syncGen++
	gen := e.syncGen
	e.notifyLocked()
	e.mu.Unlock()

	time.AfterFunc(e.syncedTTL, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.syncGen != gen {
			return
		}
		e.synced = false
		e.notifyLocked()
	})
}

func (e *Engine) drainLogged(ctx context.Context) {
	if _, err := e.Drain(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
		e.logger.Error(ctx, "drain failed", logger.Error(err))
	}
}

func (e *Engine) keyLock(k model.ScoreKey) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[k]
	if !ok {
		l = &sync.Mutex{}
		e.locks[k] = l
	}
	return l
}

func (e *Engine) latestStamp(k model.ScoreKey) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeTS[k]
}

func (e *Engine) doneSaving(k model.ScoreKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving[k] > 0 {
		e.saving[k]--
	}
	if e.saving[k] == 0 {
		delete(e.saving, k)
	}
	e.notifyLocked()
}

func (e *Engine) currentTeam() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teamID
}

func (e *Engine) setWarning(msg string) {
	e.mu.Lock()
	e.warning = msg
	e.notifyLocked()
	e.mu.Unlock()
}

// State returns the current view.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{
		TeamID:       e.teamID,
		Scores:       []model.Score{},
		Saving:       []int{},
		Loading:      e.loading,
		Online:       e.monitor.Online(),
		PendingCount: e.pending,
		TeamPending:  e.teamPend,
		Synced:       e.synced,
		Warning:      e.warning,
	}
	for k, s := range e.scores {
		if k.TeamID == e.teamID {
			st.Scores = append(st.Scores, s)
		}
	}
	sort.Slice(st.Scores, func(i, j int) bool { return st.Scores[i].HoleNumber < st.Scores[j].HoleNumber })
	for k := range e.saving {
		if k.TeamID == e.teamID {
			st.Saving = append(st.Saving, k.HoleNumber)
		}
	}
	sort.Ints(st.Saving)
	return st
}

// Subscribe registers an observer of State. A slow observer skips
// intermediate states and always receives the latest.
func (e *Engine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	e.mu.Lock()
	ch <- e.stateLocked()
	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = ch
	e.obsMu.Unlock()
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.obsMu.Lock()
			defer e.obsMu.Unlock()
			if c, ok := e.observers[id]; ok {
				close(c)
				delete(e.observers, id)
			}
		})
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifyLocked()
}

// notifyLocked must be called with mu held.
func (e *Engine) notifyLocked() {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	if len(e.observers) == 0 {
		return
	}
	st := e.stateLocked()
	for _, ch := range e.observers {
		select {
		case ch <- st:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
