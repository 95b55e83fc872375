package course

import "github.com/okian/scramble/internal/domain/model"

// Glendoveer West, WHITE tees. Par 71, 2705 yards.
var glendoveerWest = MustNew("Glendoveer West", "Portland, OR", []model.CourseHole{
	{HoleNumber: 1, Par: 4, Yardage: 275, Handicap: 13},
	{HoleNumber: 2, Par: 4, Yardage: 242, Handicap: 15},
	{HoleNumber: 3, Par: 4, Yardage: 304, Handicap: 7},
	{HoleNumber: 4, Par: 3, Yardage: 154, Handicap: 17},
	{HoleNumber: 5, Par: 4, Yardage: 268, Handicap: 11},
	{HoleNumber: 6, Par: 4, Yardage: 357, Handicap: 1},
	{HoleNumber: 7, Par: 4, Yardage: 335, Handicap: 5},
	{HoleNumber: 8, Par: 4, Yardage: 346, Handicap: 3},
	{HoleNumber: 9, Par: 5, Yardage: 424, Handicap: 9},
	{HoleNumber: 10, Par: 4, Yardage: 265, Handicap: 14},
	{HoleNumber: 11, Par: 4, Yardage: 372, Handicap: 2},
	{HoleNumber: 12, Par: 3, Yardage: 112, Handicap: 18},
	{HoleNumber: 13, Par: 4, Yardage: 308, Handicap: 8},
	{HoleNumber: 14, Par: 4, Yardage: 340, Handicap: 6},
	{HoleNumber: 15, Par: 5, Yardage: 457, Handicap: 4},
	{HoleNumber: 16, Par: 4, Yardage: 383, Handicap: 10},
	{HoleNumber: 17, Par: 4, Yardage: 341, Handicap: 12},
	{HoleNumber: 18, Par: 3, Yardage: 144, Handicap: 16},
})

// GlendoveerWest returns the tournament's default course.
func GlendoveerWest() *Course {
	return glendoveerWest
}
