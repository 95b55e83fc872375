package course_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/okian/scramble/internal/domain/course"
	"github.com/okian/scramble/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGlendoveerWest(t *testing.T) {
	Convey("Given the default course", t, func() {
		c := course.GlendoveerWest()

		Convey("Then it has 18 holes summing to par 71", func() {
			So(c.HoleCount(), ShouldEqual, 18)
			So(c.TotalPar(), ShouldEqual, 71)
		})

		Convey("And the front nine plays to par 36", func() {
			So(c.ParThrough(9), ShouldEqual, 36)
		})

		Convey("And holes are ordered and addressable by number", func() {
			holes := c.Holes()
			for i, h := range holes {
				So(h.HoleNumber, ShouldEqual, i+1)
			}
			h, ok := c.Hole(4)
			So(ok, ShouldBeTrue)
			So(h.Par, ShouldEqual, 3)
			So(h.Yardage, ShouldEqual, 154)
		})

		Convey("And mutating the returned slice does not affect the course", func() {
			holes := c.Holes()
			holes[0].Par = 5
			So(c.Par(1), ShouldEqual, 4)
		})

		Convey("And unknown holes have zero par", func() {
			_, ok := c.Hole(19)
			So(ok, ShouldBeFalse)
			So(c.Par(19), ShouldEqual, 0)
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given hole tables", t, func() {
		Convey("When holes are out of order", func() {
			c, err := course.New("Test", "", []model.CourseHole{
				{HoleNumber: 3, Par: 5}, {HoleNumber: 1, Par: 4}, {HoleNumber: 2, Par: 4},
			})

			Convey("Then they are sorted by hole number", func() {
				So(err, ShouldBeNil)
				So(c.Holes()[0].HoleNumber, ShouldEqual, 1)
				So(c.ParThrough(2), ShouldEqual, 8)
				So(c.TotalPar(), ShouldEqual, 13)
			})
		})

		Convey("When a hole number repeats", func() {
			_, err := course.New("Test", "", []model.CourseHole{{HoleNumber: 1, Par: 4}, {HoleNumber: 1, Par: 3}})
			So(errors.Is(err, course.ErrInvalidCourse), ShouldBeTrue)
		})

		Convey("When par is outside 3..5", func() {
			_, err := course.New("Test", "", []model.CourseHole{{HoleNumber: 1, Par: 6}})
			So(errors.Is(err, course.ErrInvalidCourse), ShouldBeTrue)
		})

		Convey("When a hole number is outside 1..18", func() {
			_, err := course.New("Test", "", []model.CourseHole{{HoleNumber: 19, Par: 4}})
			So(errors.Is(err, course.ErrInvalidCourse), ShouldBeTrue)
		})
	})
}
