package client_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scramble/internal/adapters/http/api"
	"github.com/okian/scramble/internal/adapters/http/client"
	"github.com/okian/scramble/internal/adapters/repository"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/leaderboard"
	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// startServer runs the full server stack on an httptest server.
func startServer(t *testing.T) (*httptest.Server, func()) {
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	board := leaderboard.NewAggregator(store, course.GlendoveerWest())
	if err := board.Start(ctx); err != nil {
		t.Fatalf("start aggregator: %v", err)
	}
	hub := api.NewHub(board)
	go func() { _ = hub.Run(ctx, store) }()
	<-hub.Ready()

	ts := httptest.NewServer(api.NewServer(store, board, hub, api.WithPinger(store)).Routes())
	return ts, func() {
		ts.Close()
		cancel()
		board.Stop()
		_ = store.Close()
	}
}

func TestClientREST(t *testing.T) {
	Convey("Given a client for a running server", t, func() {
		ts, stop := startServer(t)
		Reset(stop)
		ctx := context.Background()
		c, err := client.New(ts.URL, client.WithTimeout(2*time.Second))
		So(err, ShouldBeNil)

		team, err := c.CreateTeam(ctx, model.Team{PlayerName: "Ann", PartnerName: "Bo", ShirtSize: model.ShirtSmall})
		So(err, ShouldBeNil)

		Convey("Then the server is reachable", func() {
			So(c.Check(ctx), ShouldBeNil)
		})

		Convey("When a score is upserted and queried", func() {
			row, err := c.UpsertScore(ctx, team.ID, 3, 4)
			So(err, ShouldBeNil)
			rows, qerr := c.QueryScores(ctx, team.ID)

			Convey("Then the stored row comes back", func() {
				So(qerr, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].ID, ShouldEqual, row.ID)
				So(rows[0].Strokes, ShouldEqual, 4)
			})

			Convey("And it can be deleted once", func() {
				So(c.DeleteScore(ctx, team.ID, 3), ShouldBeNil)
				So(errors.Is(c.DeleteScore(ctx, team.ID, 3), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When requests are invalid", func() {
			_, badStrokes := c.UpsertScore(ctx, team.ID, 3, 16)
			_, badTeam := c.UpsertScore(ctx, "ghost", 3, 4)
			_, badShirt := c.CreateTeam(ctx, model.Team{PlayerName: "X", PartnerName: "Y", ShirtSize: "Tiny"})

			Convey("Then errors map onto the store's sentinels", func() {
				So(errors.Is(badStrokes, repository.ErrInvalidScore), ShouldBeTrue)
				So(errors.Is(badTeam, repository.ErrTeamNotFound), ShouldBeTrue)
				So(errors.Is(badShirt, repository.ErrInvalidTeam), ShouldBeTrue)
			})
		})

		Convey("When course and leaderboard are read", func() {
			crs, cerr := c.Course(ctx)
			lb, lerr := c.Leaderboard(ctx)

			Convey("Then both are served", func() {
				So(cerr, ShouldBeNil)
				So(crs.Name, ShouldEqual, course.GlendoveerWest().Name())
				So(lerr, ShouldBeNil)
				So(lb.TotalPar, ShouldEqual, crs.TotalPar)
			})
		})
	})
}

func TestClientUnavailable(t *testing.T) {
	Convey("Given a client for a server that has gone away", t, func() {
		ts, stop := startServer(t)
		url := ts.URL
		stop()
		c, err := client.New(url, client.WithTimeout(500*time.Millisecond))
		So(err, ShouldBeNil)

		Convey("Then calls fail as unavailable", func() {
			So(errors.Is(c.Check(context.Background()), client.ErrUnavailable), ShouldBeTrue)
			_, err := c.SubscribeScores(context.Background())
			So(errors.Is(err, client.ErrUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a malformed server url", t, func() {
		_, err := client.New("ftp://example.com")

		Convey("Then New rejects it", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClientSubscriptions(t *testing.T) {
	Convey("Given a score subscription", t, func() {
		ts, stop := startServer(t)
		Reset(stop)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c, err := client.New(ts.URL)
		So(err, ShouldBeNil)
		team, err := c.CreateTeam(ctx, model.Team{PlayerName: "Cy", PartnerName: "Di", ShirtSize: model.ShirtXL})
		So(err, ShouldBeNil)

		changes, err := c.SubscribeScores(ctx)
		So(err, ShouldBeNil)

		Convey("When another writer records a score", func() {
			_, err := c.UpsertScore(ctx, team.ID, 9, 2)
			So(err, ShouldBeNil)

			Convey("Then the change arrives", func() {
				select {
				case ch := <-changes:
					So(ch.Op, ShouldEqual, model.OpInsert)
					So(ch.Score.Strokes, ShouldEqual, 2)
				case <-time.After(2 * time.Second):
					So("timed out", ShouldBeEmpty)
				}
			})
		})

		Convey("When the context ends", func() {
			cancel()

			Convey("Then the channel closes", func() {
				closed := false
				deadline := time.After(2 * time.Second)
				for !closed {
					select {
					case _, ok := <-changes:
						closed = !ok
					case <-deadline:
						So("timed out", ShouldBeEmpty)
						return
					}
				}
				So(closed, ShouldBeTrue)
			})
		})
	})
}

func TestClientAsLeaderboardSource(t *testing.T) {
	Convey("Given an aggregator fed by the client", t, func() {
		ts, stop := startServer(t)
		Reset(stop)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c, err := client.New(ts.URL)
		So(err, ShouldBeNil)

		local := leaderboard.NewAggregator(c, course.GlendoveerWest())
		So(local.Start(ctx), ShouldBeNil)
		defer local.Stop()

		Convey("When teams register and score", func() {
			a, _ := c.CreateTeam(ctx, model.Team{PlayerName: "Ed", PartnerName: "Flo", ShirtSize: model.ShirtMedium})
			b, _ := c.CreateTeam(ctx, model.Team{PlayerName: "Gil", PartnerName: "Hu", ShirtSize: model.ShirtMedium})
			_, _ = c.UpsertScore(ctx, a.ID, 1, 5)
			_, _ = c.UpsertScore(ctx, b.ID, 1, 3)

			Convey("Then the local standings converge on the server's", func() {
				ok := false
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) && !ok {
					entries := local.Entries()
					ok = len(entries) == 2 && entries[0].TeamID == b.ID && entries[1].HolesCompleted == 1
					time.Sleep(10 * time.Millisecond)
				}
				So(ok, ShouldBeTrue)
			})
		})
	})
}
