// Package course holds the static hole layout the leaderboard is scored against.
package course

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/okian/scramble/internal/domain/model"
)

// ErrInvalidCourse is returned by New for malformed hole data.
var ErrInvalidCourse = errors.New("invalid course")

// Course is an immutable, ordered set of holes.
type Course struct {
	name     string
	city     string
	holes    []model.CourseHole
	byNumber map[int]model.CourseHole
}

// New validates holes and builds a Course. Hole numbers must be unique and
// within 1..18; par must be 3, 4 or 5.
func New(name, city string, holes []model.CourseHole) (*Course, error) {
	c := &Course{
		name:     name,
		city:     city,
		holes:    make([]model.CourseHole, 0, len(holes)),
		byNumber: make(map[int]model.CourseHole, len(holes)),
	}
	for _, h := range holes {
		if h.HoleNumber < model.MinHole || h.HoleNumber > model.MaxHole {
			return nil, errors.Wrapf(ErrInvalidCourse, "hole number %d out of range", h.HoleNumber)
		}
		if h.Par < 3 || h.Par > 5 {
			return nil, errors.Wrapf(ErrInvalidCourse, "hole %d has par %d", h.HoleNumber, h.Par)
		}
		if _, dup := c.byNumber[h.HoleNumber]; dup {
			return nil, errors.Wrapf(ErrInvalidCourse, "duplicate hole %d", h.HoleNumber)
		}
		c.byNumber[h.HoleNumber] = h
		c.holes = append(c.holes, h)
	}
	sort.Slice(c.holes, func(i, j int) bool { return c.holes[i].HoleNumber < c.holes[j].HoleNumber })
	return c, nil
}

// MustNew is New for static tables; it panics on invalid data.
func MustNew(name, city string, holes []model.CourseHole) *Course {
	c, err := New(name, city, holes)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the course name.
func (c *Course) Name() string { return c.name }

// City returns the course location.
func (c *Course) City() string { return c.city }

// HoleCount returns the number of holes.
func (c *Course) HoleCount() int { return len(c.holes) }

// Holes returns a copy of the holes in hole-number order.
func (c *Course) Holes() []model.CourseHole {
	out := make([]model.CourseHole, len(c.holes))
	copy(out, c.holes)
	return out
}

// Hole looks up a hole by number.
func (c *Course) Hole(n int) (model.CourseHole, bool) {
	h, ok := c.byNumber[n]
	return h, ok
}

// Par returns the par for hole n, or 0 when the hole is not on the course.
func (c *Course) Par(n int) int {
	return c.byNumber[n].Par
}

// TotalPar sums par over every hole.
func (c *Course) TotalPar() int {
	return c.ParThrough(model.MaxHole)
}

// ParThrough sums par over holes 1..n.
func (c *Course) ParThrough(n int) int {
	total := 0
	for _, h := range c.holes {
		if h.HoleNumber > n {
			break
		}
		total += h.Par
	}
	return total
}
