package leaderboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeSource struct {
	mu        sync.Mutex
	teams     []model.Team
	scores    []model.Score
	scoreSubs []chan model.ScoreChange
	teamSubs  []chan model.TeamChange
	loads     int
}

func (f *fakeSource) QueryTeams(context.Context) ([]model.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return append([]model.Team(nil), f.teams...), nil
}

func (f *fakeSource) QueryScores(_ context.Context, teamID string) ([]model.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Score
	for _, s := range f.scores {
		if teamID == "" || s.TeamID == teamID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) SubscribeScores(context.Context) (<-chan model.ScoreChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan model.ScoreChange, 16)
	f.scoreSubs = append(f.scoreSubs, ch)
	return ch, nil
}

func (f *fakeSource) SubscribeTeams(context.Context) (<-chan model.TeamChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan model.TeamChange, 16)
	f.teamSubs = append(f.teamSubs, ch)
	return ch, nil
}

func (f *fakeSource) emitScore(ch model.ScoreChange) {
	f.mu.Lock()
	sub := f.scoreSubs[len(f.scoreSubs)-1]
	f.mu.Unlock()
	sub <- ch
}

func (f *fakeSource) emitTeam(ch model.TeamChange) {
	f.mu.Lock()
	sub := f.teamSubs[len(f.teamSubs)-1]
	f.mu.Unlock()
	sub <- ch
}

func (f *fakeSource) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scoreSubs)
}

func waitFor(ch <-chan []Entry, pred func([]Entry) bool) []Entry {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case entries, ok := <-ch:
			if !ok {
				return nil
			}
			if pred(entries) {
				return entries
			}
		case <-deadline:
			return nil
		}
	}
}

func holesOf(teamID string, want int) func([]Entry) bool {
	return func(entries []Entry) bool {
		for _, e := range entries {
			if e.TeamID == teamID {
				return e.HolesCompleted == want
			}
		}
		return false
	}
}

func TestAggregator(t *testing.T) {
	Convey("Given a source with two teams and one score", t, func() {
		c := threeHoleCourse()
		src := &fakeSource{
			teams:  []model.Team{team("A", 0), team("B", 1)},
			scores: []model.Score{score("A", 1, 3)},
		}
		agg := NewAggregator(src, c, WithResubscribeDelay(10*time.Millisecond))
		So(agg.Loading(), ShouldBeTrue)

		ctx := context.Background()
		So(agg.Start(ctx), ShouldBeNil)
		defer agg.Stop()

		Convey("Then the initial snapshot is ranked", func() {
			So(agg.Loading(), ShouldBeFalse)
			entries := agg.Entries()
			So(entries, ShouldHaveLength, 2)
			So(entries[0].TeamID, ShouldEqual, "A")
			So(entries[0].ScoreToPar, ShouldEqual, -1)
		})

		Convey("Then a team's rows are available hole by hole", func() {
			So(agg.TeamScores("B"), ShouldBeEmpty)
			src.emitScore(model.ScoreChange{Op: model.OpInsert, Score: score("A", 3, 5)})
			So(eventuallyTrue(func() bool { return len(agg.TeamScores("A")) == 2 }), ShouldBeTrue)
			rows := agg.TeamScores("A")
			So(rows[0].HoleNumber, ShouldEqual, 1)
			So(rows[1].HoleNumber, ShouldEqual, 3)
			So(rows[1].Strokes, ShouldEqual, 5)
		})

		Convey("Then starting twice is rejected", func() {
			So(agg.Start(ctx), ShouldEqual, ErrAlreadyStarted)
		})

		Convey("When a new score arrives", func() {
			updates, cancel := agg.Subscribe()
			defer cancel()
			src.emitScore(model.ScoreChange{Op: model.OpInsert, Score: score("B", 1, 2)})

			Convey("Then observers receive the recomputed standings", func() {
				entries := waitFor(updates, holesOf("B", 1))
				So(entries, ShouldNotBeNil)
				So(entries[0].TeamID, ShouldEqual, "B")
				So(entries[0].ScoreToPar, ShouldEqual, -2)
			})
		})

		Convey("When an older update arrives after a newer one", func() {
			updates, cancel := agg.Subscribe()
			defer cancel()

			newer := score("A", 2, 5)
			newer.UpdatedAt = newer.UpdatedAt.Add(time.Minute)
			older := newer
			older.Strokes = 9
			older.UpdatedAt = newer.UpdatedAt.Add(-30 * time.Second)

			src.emitScore(model.ScoreChange{Op: model.OpUpdate, Score: newer})
			src.emitScore(model.ScoreChange{Op: model.OpUpdate, Score: older})
			src.emitScore(model.ScoreChange{Op: model.OpInsert, Score: score("A", 3, 4)})

			Convey("Then the newer row is kept", func() {
				entries := waitFor(updates, holesOf("A", 3))
				So(entries, ShouldNotBeNil)
				So(byTeam(entries)["A"].TotalStrokes, ShouldEqual, 12)
			})
		})

		Convey("When a team registers", func() {
			updates, cancel := agg.Subscribe()
			defer cancel()
			src.emitTeam(model.TeamChange{Op: model.OpInsert, Team: team("Z", 5)})

			Convey("Then it joins the standings unstarted", func() {
				entries := waitFor(updates, func(e []Entry) bool { return len(e) == 3 })
				So(entries, ShouldNotBeNil)
				So(byTeam(entries)["Z"].Started(), ShouldBeFalse)
			})
		})

		Convey("When a score is deleted", func() {
			updates, cancel := agg.Subscribe()
			defer cancel()
			src.emitScore(model.ScoreChange{Op: model.OpDelete, Score: score("A", 1, 3)})

			Convey("Then the team returns to not started", func() {
				So(waitFor(updates, holesOf("A", 0)), ShouldNotBeNil)
			})
		})

		Convey("When the score stream closes", func() {
			updates, cancel := agg.Subscribe()
			defer cancel()

			src.mu.Lock()
			src.scores = append(src.scores, score("B", 2, 4))
			close(src.scoreSubs[0])
			src.mu.Unlock()

			Convey("Then the aggregator resubscribes and reloads the snapshot", func() {
				So(waitFor(updates, holesOf("B", 1)), ShouldNotBeNil)
				So(src.subscriptions(), ShouldEqual, 2)

				src.emitScore(model.ScoreChange{Op: model.OpInsert, Score: score("B", 3, 5)})
				So(waitFor(updates, holesOf("B", 2)), ShouldNotBeNil)
			})
		})
	})
}

func TestAggregatorObservers(t *testing.T) {
	Convey("Given an aggregator with a slow observer", t, func() {
		src := &fakeSource{teams: []model.Team{team("A", 0)}}
		agg := NewAggregator(src, threeHoleCourse())
		So(agg.Start(context.Background()), ShouldBeNil)
		updates, cancel := agg.Subscribe()

		Convey("When several changes land before it reads", func() {
			for hole := 1; hole <= 3; hole++ {
				agg.ApplyScore(model.ScoreChange{Op: model.OpInsert, Score: score("A", hole, 4)})
			}

			Convey("Then it reads only the latest standings", func() {
				entries := <-updates
				So(entries[0].HolesCompleted, ShouldEqual, 3)
				select {
				case <-updates:
					So("unexpected extra snapshot", ShouldBeEmpty)
				default:
				}
			})
		})

		Convey("When the aggregator stops", func() {
			agg.Stop()

			Convey("Then observer channels are closed", func() {
				<-updates
				_, ok := <-updates
				So(ok, ShouldBeFalse)
				cancel()
			})
		})

		Reset(func() {
			cancel()
			agg.Stop()
		})
	})
}

func eventuallyTrue(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
