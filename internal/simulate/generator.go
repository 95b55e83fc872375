package simulate

import (
	"math/rand/v2"
	"strconv"

	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/model"
)

var (
	firstNames = []string{"Ann", "Bo", "Cy", "Di", "Ed", "Flo", "Gil", "Hu", "Ivy", "Jo", "Kai", "Lu", "Mo", "Ned", "Ola", "Pip"}
	lastNames  = []string{"Reed", "Shaw", "Tate", "Underwood", "Vance", "Wells", "Young", "Zane"}
)

// Score relative to par and its weight out of 100.
var parDeltas = []struct {
	delta  int
	weight int
}{
	{-2, 2},
	{-1, 15},
	{0, 45},
	{1, 28},
	{2, 8},
	{3, 2},
}

// generator builds reproducible rounds. It is not safe for concurrent use.
type generator struct {
	rng    *rand.Rand
	course *course.Course
}

func newGenerator(seed uint64, c *course.Course) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), course: c}
}

// rounds generates n rounds. Roughly one team in ten has not teed off, a
// third are mid-round and the rest have finished.
func (g *generator) rounds(n int, correctionRate float64) []Round {
	out := make([]Round, n)
	for i := range out {
		out[i] = g.round(i, correctionRate)
	}
	return out
}

func (g *generator) round(i int, correctionRate float64) Round {
	r := Round{Team: g.team(i)}

	holes := model.MaxHole
	switch p := g.rng.IntN(10); {
	case p == 0:
		holes = 0
	case p <= 3:
		holes = 1 + g.rng.IntN(model.MaxHole-1)
	}

	r.Strokes = make([]int, holes)
	for h := 1; h <= holes; h++ {
		r.Strokes[h-1] = g.strokes(g.course.Par(h))
		if correctionRate > 0 && g.rng.Float64() < correctionRate {
			if r.Corrections == nil {
				r.Corrections = make(map[int]int)
			}
			wrong := clamp(r.Strokes[h-1]+1+g.rng.IntN(3), model.MinStrokes, model.MaxStrokes)
			if wrong == r.Strokes[h-1] {
				wrong = clamp(r.Strokes[h-1]-1, model.MinStrokes, model.MaxStrokes)
			}
			r.Corrections[h] = wrong
		}
	}
	return r
}

func (g *generator) team(i int) model.Team {
	first := firstNames[g.rng.IntN(len(firstNames))]
	partner := firstNames[g.rng.IntN(len(firstNames))]
	last := lastNames[g.rng.IntN(len(lastNames))]
	return model.Team{
		PlayerName:  first + " " + last,
		PartnerName: partner + " " + last + " #" + strconv.Itoa(i+1),
		ShirtSize:   model.ShirtSizes[g.rng.IntN(len(model.ShirtSizes))],
	}
}

func (g *generator) strokes(par int) int {
	roll := g.rng.IntN(100)
	for _, d := range parDeltas {
		if roll < d.weight {
			return clamp(par+d.delta, model.MinStrokes, model.MaxStrokes)
		}
		roll -= d.weight
	}
	return clamp(par, model.MinStrokes, model.MaxStrokes)
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
