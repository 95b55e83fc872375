package leaderboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

const defaultResubscribeDelay = time.Second

// Source is the read side of the score record store.
type Source interface {
	QueryTeams(ctx context.Context) ([]model.Team, error)
	// QueryScores returns every row for teamID, or all rows when teamID is empty.
	QueryScores(ctx context.Context, teamID string) ([]model.Score, error)
	SubscribeScores(ctx context.Context) (<-chan model.ScoreChange, error)
	SubscribeTeams(ctx context.Context) (<-chan model.TeamChange, error)
}

// Aggregator keeps a live leaderboard over a Source. Events are folded into a
// normalized snapshot keyed by (team, hole) and the standings are recomputed
// from the whole snapshot after every change.
type Aggregator struct {
	src              Source
	course           *course.Course
	rank             []RankOption
	logger           logger.Logger
	resubscribeDelay time.Duration

	mu         sync.RWMutex
	teams      map[string]model.Team
	scores     map[model.ScoreKey]model.Score
	entries    []Entry
	loading    bool
	refreshing int
	// events applied while a snapshot load is in flight, replayed on top of it
	replayScores []model.ScoreChange
	replayTeams  []model.TeamChange

	obsMu     sync.Mutex
	observers map[uint64]chan []Entry
	nextObs   uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAggregator creates an aggregator for c fed by src. Call Start to begin.
func NewAggregator(src Source, c *course.Course, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		src:              src,
		course:           c,
		logger:           logger.Get().Named("leaderboard"),
		resubscribeDelay: defaultResubscribeDelay,
		teams:            make(map[string]model.Team),
		scores:           make(map[model.ScoreKey]model.Score),
		entries:          []Entry{},
		loading:          true,
		observers:        make(map[uint64]chan []Entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start subscribes to changes, loads the initial snapshot and then applies
// events until ctx ends or Stop is called. Subscribing before the load means
// no change committed during the load is missed.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)

	scoreCh, err := a.src.SubscribeScores(ctx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "subscribe scores")
	}
	teamCh, err := a.src.SubscribeTeams(ctx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "subscribe teams")
	}
	if err := a.Refresh(ctx); err != nil {
		cancel()
		return err
	}

	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(ctx, scoreCh, teamCh)
	return nil
}

// Stop ends event processing and closes every observer channel.
func (a *Aggregator) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done

	a.obsMu.Lock()
	for id, ch := range a.observers {
		close(ch)
		delete(a.observers, id)
	}
	a.obsMu.Unlock()
	metrics.UpdateLeaderboardObservers(0)
}

func (a *Aggregator) run(ctx context.Context, scoreCh <-chan model.ScoreChange, teamCh <-chan model.TeamChange) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-scoreCh:
			if !ok {
				a.logger.Warn(ctx, "score stream closed, resubscribing")
				if scoreCh = a.resubscribeScores(ctx); scoreCh == nil {
					return
				}
				a.refreshLogged(ctx)
				continue
			}
			a.ApplyScore(ch)
		case ch, ok := <-teamCh:
			if !ok {
				a.logger.Warn(ctx, "team stream closed, resubscribing")
				if teamCh = a.resubscribeTeams(ctx); teamCh == nil {
					return
				}
				a.refreshLogged(ctx)
				continue
			}
			a.ApplyTeam(ch)
		}
	}
}

func (a *Aggregator) resubscribeScores(ctx context.Context) <-chan model.ScoreChange {
	for {
		ch, err := a.src.SubscribeScores(ctx)
		if err == nil {
			return ch
		}
		a.logger.Error(ctx, "resubscribe scores failed", logger.Error(err))
		metrics.RecordErrorByComponent("leaderboard", "resubscribe")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.resubscribeDelay):
		}
	}
}

func (a *Aggregator) resubscribeTeams(ctx context.Context) <-chan model.TeamChange {
	for {
		ch, err := a.src.SubscribeTeams(ctx)
		if err == nil {
			return ch
		}
		a.logger.Error(ctx, "resubscribe teams failed", logger.Error(err))
		metrics.RecordErrorByComponent("leaderboard", "resubscribe")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.resubscribeDelay):
		}
	}
}

func (a *Aggregator) refreshLogged(ctx context.Context) {
	if err := a.Refresh(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error(ctx, "leaderboard refresh failed", logger.Error(err))
		metrics.RecordErrorByComponent("leaderboard", "refresh")
	}
}

// Refresh reloads teams and scores from the source and replaces the
// snapshot. Events applied while the load is in flight are replayed on top
// of the loaded rows, so a refresh never rolls a row back.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.refreshing++
	a.mu.Unlock()

	var (
		teams  []model.Team
		scores []model.Score
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		t, err := a.src.QueryTeams(ctx)
		if err != nil {
			return errors.Wrap(err, "query teams")
		}
		teams = t
		return nil
	})
	p.Go(func(ctx context.Context) error {
		s, err := a.src.QueryScores(ctx, "")
		if err != nil {
			return errors.Wrap(err, "query scores")
		}
		scores = s
		return nil
	})
	err := p.Wait()

	a.mu.Lock()
	a.refreshing--
	if err != nil {
		if a.refreshing == 0 {
			a.replayScores, a.replayTeams = nil, nil
		}
		a.mu.Unlock()
		return errors.Wrap(err, "load leaderboard snapshot")
	}

	a.teams = make(map[string]model.Team, len(teams))
	for _, t := range teams {
		a.teams[t.ID] = t
	}
	a.scores = make(map[model.ScoreKey]model.Score, len(scores))
	for _, s := range scores {
		a.putScore(s)
	}
	for _, ch := range a.replayTeams {
		a.applyTeam(ch)
	}
	for _, ch := range a.replayScores {
		a.applyScore(ch)
	}
	if a.refreshing == 0 {
		a.replayScores, a.replayTeams = nil, nil
	}
	a.loading = false
	a.publish(a.recompute())
	a.mu.Unlock()
	return nil
}

// ApplyScore folds one score change into the snapshot and recomputes.
func (a *Aggregator) ApplyScore(ch model.ScoreChange) {
	a.mu.Lock()
	if a.refreshing > 0 {
		a.replayScores = append(a.replayScores, ch)
	}
	if a.applyScore(ch) {
		a.publish(a.recompute())
	}
	a.mu.Unlock()
}

// ApplyTeam folds one team change into the snapshot and recomputes.
func (a *Aggregator) ApplyTeam(ch model.TeamChange) {
	a.mu.Lock()
	if a.refreshing > 0 {
		a.replayTeams = append(a.replayTeams, ch)
	}
	a.applyTeam(ch)
	a.publish(a.recompute())
	a.mu.Unlock()
}

// applyScore reports whether the snapshot changed.
func (a *Aggregator) applyScore(ch model.ScoreChange) bool {
	switch ch.Op {
	case model.OpInsert, model.OpUpdate:
		return a.putScore(ch.Score)
	case model.OpDelete:
		k := ch.Score.Key()
		cur, ok := a.scores[k]
		if !ok || (ch.Score.ID != "" && cur.ID != ch.Score.ID) {
			return false
		}
		delete(a.scores, k)
		return true
	default:
		return false
	}
}

// putScore stores s unless the snapshot already holds a newer row for its key.
func (a *Aggregator) putScore(s model.Score) bool {
	k := s.Key()
	if cur, ok := a.scores[k]; ok && cur.UpdatedAt.After(s.UpdatedAt) {
		return false
	}
	a.scores[k] = s
	return true
}

func (a *Aggregator) applyTeam(ch model.TeamChange) {
	switch ch.Op {
	case model.OpInsert, model.OpUpdate:
		a.teams[ch.Team.ID] = ch.Team
	case model.OpDelete:
		delete(a.teams, ch.Team.ID)
	}
}

// recompute must be called with mu held.
func (a *Aggregator) recompute() []Entry {
	start := time.Now()
	teams := make([]model.Team, 0, len(a.teams))
	for _, t := range a.teams {
		teams = append(teams, t)
	}
	scores := make([]model.Score, 0, len(a.scores))
	for _, s := range a.scores {
		scores = append(scores, s)
	}
	a.entries = Compute(a.course, teams, scores, a.rank...)

	metrics.RecordLeaderboardRecompute(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateLeaderboardTeams(len(a.entries))
	return a.entries
}

// Entries returns the current standings.
func (a *Aggregator) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// TeamScores returns the snapshot rows for teamID ordered by hole.
func (a *Aggregator) TeamScores(teamID string) []model.Score {
	a.mu.RLock()
	out := make([]model.Score, 0, a.course.HoleCount())
	for k, s := range a.scores {
		if k.TeamID == teamID {
			out = append(out, s)
		}
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].HoleNumber < out[j].HoleNumber })
	return out
}

// Loading is true until the first snapshot has been loaded.
func (a *Aggregator) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// Course returns the course the standings are scored against.
func (a *Aggregator) Course() *course.Course { return a.course }

// Subscribe registers an observer. The channel holds at most one pending
// snapshot; a slow observer skips intermediate ones and always receives the
// latest. The current standings are delivered immediately.
func (a *Aggregator) Subscribe() (<-chan []Entry, func()) {
	ch := make(chan []Entry, 1)

	a.mu.RLock()
	current := make([]Entry, len(a.entries))
	copy(current, a.entries)
	ch <- current

	a.obsMu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = ch
	metrics.UpdateLeaderboardObservers(len(a.observers))
	a.obsMu.Unlock()
	a.mu.RUnlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.obsMu.Lock()
			defer a.obsMu.Unlock()
			if c, ok := a.observers[id]; ok {
				close(c)
				delete(a.observers, id)
				metrics.UpdateLeaderboardObservers(len(a.observers))
			}
		})
	}
}

// publish must be called with mu held so observers see snapshots in order.
func (a *Aggregator) publish(entries []Entry) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	for _, ch := range a.observers {
		snapshot := make([]Entry, len(entries))
		copy(snapshot, entries)
		offerLatest(ch, snapshot)
	}
}

// offerLatest replaces any undelivered value in a capacity-1 channel.
func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
