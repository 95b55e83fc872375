package leaderboard

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2026, 6, 6, 8, 0, 0, 0, time.UTC)

func threeHoleCourse() *course.Course {
	return course.MustNew("Practice", "Portland", []model.CourseHole{
		{HoleNumber: 1, Par: 4},
		{HoleNumber: 2, Par: 4},
		{HoleNumber: 3, Par: 5},
	})
}

func team(id string, minute int) model.Team {
	return model.Team{
		ID:          id,
		PlayerName:  id + "-player",
		PartnerName: id + "-partner",
		ShirtSize:   model.ShirtLarge,
		CreatedAt:   epoch.Add(time.Duration(minute) * time.Minute),
	}
}

func score(teamID string, hole, strokes int) model.Score {
	ts := epoch.Add(time.Hour)
	return model.Score{
		ID:         teamID + "-" + strconv.Itoa(hole),
		TeamID:     teamID,
		HoleNumber: hole,
		Strokes:    strokes,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func byTeam(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.TeamID] = e
	}
	return out
}

func TestComputeRanking(t *testing.T) {
	Convey("Given a three-hole course with pars 4, 4, 5", t, func() {
		c := threeHoleCourse()
		teams := []model.Team{team("A", 0), team("B", 1), team("C", 2)}
		scores := []model.Score{
			score("A", 1, 4), score("A", 2, 4), score("A", 3, 4),
			score("B", 1, 4), score("B", 2, 5),
		}

		Convey("When standings are computed with the default ordering", func() {
			entries := Compute(c, teams, scores)

			Convey("Then totals and score-to-par are derived from completed holes", func() {
				got := byTeam(entries)
				So(got["A"].ScoreToPar, ShouldEqual, -1)
				So(got["A"].TotalStrokes, ShouldEqual, 12)
				So(got["A"].HolesCompleted, ShouldEqual, 3)
				So(got["B"].ScoreToPar, ShouldEqual, 1)
				So(got["B"].TotalStrokes, ShouldEqual, 9)
				So(got["B"].HolesCompleted, ShouldEqual, 2)
				So(got["C"].ScoreToPar, ShouldEqual, 0)
				So(got["C"].HolesCompleted, ShouldEqual, 0)
				So(got["C"].Started(), ShouldBeFalse)
			})

			Convey("Then an unstarted team sorts at score-to-par zero", func() {
				So(entries[0].TeamID, ShouldEqual, "A")
				So(entries[1].TeamID, ShouldEqual, "C")
				So(entries[2].TeamID, ShouldEqual, "B")
				for i, e := range entries {
					So(e.Rank, ShouldEqual, i+1)
					So(e.Tied, ShouldBeFalse)
				}
			})
		})

		Convey("When standings are computed with unstarted teams last", func() {
			entries := Compute(c, teams, scores, WithUnstartedLast())

			Convey("Then A, B, C rank 1, 2, 3", func() {
				So(entries[0].TeamID, ShouldEqual, "A")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].TeamID, ShouldEqual, "B")
				So(entries[1].Rank, ShouldEqual, 2)
				So(entries[2].TeamID, ShouldEqual, "C")
				So(entries[2].Rank, ShouldEqual, 3)
			})
		})
	})
}

func TestComputeTies(t *testing.T) {
	Convey("Given three teams through nine holes", t, func() {
		c := course.GlendoveerWest()
		teams := []model.Team{team("D", 0), team("E", 1), team("F", 2)}
		var scores []model.Score
		for hole := 1; hole <= 9; hole++ {
			par := c.Par(hole)
			scores = append(scores, score("D", hole, par))
			switch hole {
			case 1:
				scores = append(scores, score("E", hole, par-1))
			case 2:
				scores = append(scores, score("E", hole, par+1))
			default:
				scores = append(scores, score("E", hole, par))
			}
			if hole == 9 {
				scores = append(scores, score("F", hole, par+1))
			} else {
				scores = append(scores, score("F", hole, par))
			}
		}

		Convey("When standings are computed", func() {
			entries := Compute(c, teams, scores)
			got := byTeam(entries)

			Convey("Then equal score-to-par shares a rank and is flagged tied", func() {
				So(got["D"].Rank, ShouldEqual, 1)
				So(got["E"].Rank, ShouldEqual, 1)
				So(got["D"].Tied, ShouldBeTrue)
				So(got["E"].Tied, ShouldBeTrue)
			})

			Convey("Then the next team skips to competition rank 3", func() {
				So(got["F"].Rank, ShouldEqual, 3)
				So(got["F"].Tied, ShouldBeFalse)
				So(got["F"].ScoreToPar, ShouldEqual, 1)
			})

			Convey("Then tied teams keep a deterministic order", func() {
				So(entries[0].TeamID, ShouldEqual, "D")
				So(entries[1].TeamID, ShouldEqual, "E")
			})
		})
	})

	Convey("Given two teams that have not started", t, func() {
		c := threeHoleCourse()
		teams := []model.Team{team("G", 0), team("H", 1)}

		Convey("Then they are not reported as tied", func() {
			entries := Compute(c, teams, nil)
			So(entries[0].Rank, ShouldEqual, 1)
			So(entries[1].Rank, ShouldEqual, 2)
			So(entries[0].Tied, ShouldBeFalse)
			So(entries[1].Tied, ShouldBeFalse)
		})
	})

	Convey("Given a team that started and sits at even par next to an unstarted team", t, func() {
		c := threeHoleCourse()
		teams := []model.Team{team("U", 0), team("S", 1)}
		scores := []model.Score{score("S", 1, 4)}

		Convey("Then the started team sorts first by holes completed and neither is tied", func() {
			entries := Compute(c, teams, scores)
			So(entries[0].TeamID, ShouldEqual, "S")
			So(entries[1].TeamID, ShouldEqual, "U")
			So(entries[0].Tied, ShouldBeFalse)
			So(entries[1].Rank, ShouldEqual, 2)
		})
	})
}

func TestComputeIsOrderIndependent(t *testing.T) {
	Convey("Given a field of teams with partial rounds", t, func() {
		c := course.GlendoveerWest()
		rng := rand.New(rand.NewSource(7))
		var teams []model.Team
		var scores []model.Score
		for i := 0; i < 12; i++ {
			id := string(rune('a' + i))
			teams = append(teams, team(id, i))
			played := rng.Intn(19)
			for hole := 1; hole <= played; hole++ {
				scores = append(scores, score(id, hole, 2+rng.Intn(5)))
			}
		}
		want := Compute(c, teams, scores)

		Convey("When the inputs are shuffled repeatedly", func() {
			for round := 0; round < 20; round++ {
				ts := append([]model.Team(nil), teams...)
				ss := append([]model.Score(nil), scores...)
				rng.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
				rng.Shuffle(len(ss), func(i, j int) { ss[i], ss[j] = ss[j], ss[i] })

				So(Compute(c, ts, ss), ShouldResemble, want)
			}
		})
	})
}

func TestComputeInputHygiene(t *testing.T) {
	Convey("Given duplicated and orphaned rows", t, func() {
		c := threeHoleCourse()
		teams := []model.Team{team("A", 0), team("A", 0)}
		old := score("A", 1, 7)
		fresh := old
		fresh.ID = "A-1-new"
		fresh.Strokes = 3
		fresh.UpdatedAt = old.UpdatedAt.Add(time.Second)
		scores := []model.Score{fresh, old, score("ghost", 1, 2)}

		Convey("When standings are computed", func() {
			entries := Compute(c, teams, scores)

			Convey("Then a team appears once and only the latest row per hole counts", func() {
				So(entries, ShouldHaveLength, 1)
				So(entries[0].HolesCompleted, ShouldEqual, 1)
				So(entries[0].TotalStrokes, ShouldEqual, 3)
				So(entries[0].ScoreToPar, ShouldEqual, -1)
			})
		})
	})

	Convey("Given no teams", t, func() {
		So(Compute(threeHoleCourse(), nil, nil), ShouldBeEmpty)
	})
}

func TestFormatting(t *testing.T) {
	Convey("Given score-to-par values", t, func() {
		So(FormatToPar(0), ShouldEqual, "E")
		So(FormatToPar(3), ShouldEqual, "+3")
		So(FormatToPar(-2), ShouldEqual, "-2")
	})

	Convey("Given single-hole results", t, func() {
		So(HoleLabel(-3), ShouldEqual, "Albatross!")
		So(HoleLabel(-2), ShouldEqual, "Eagle")
		So(HoleLabel(-1), ShouldEqual, "Birdie")
		So(HoleLabel(0), ShouldEqual, "Par")
		So(HoleLabel(1), ShouldEqual, "Bogey")
		So(HoleLabel(2), ShouldEqual, "Double Bogey")
		So(HoleLabel(4), ShouldEqual, "+4")
	})
}
