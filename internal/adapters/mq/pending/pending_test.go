package pending

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestSQLiteQueue(t *testing.T) {
	Convey("Given an empty pending queue", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "pending.db")
		q, err := Open(path)
		So(err, ShouldBeNil)
		Reset(func() { _ = q.Close() })

		Convey("When entries for different keys are put", func() {
			So(q.Put(ctx, model.NewPendingScore("t1", 3, 4, 100)), ShouldBeNil)
			So(q.Put(ctx, model.NewPendingScore("t1", 1, 5, 200)), ShouldBeNil)
			So(q.Put(ctx, model.NewPendingScore("t2", 1, 6, 300)), ShouldBeNil)

			Convey("Then GetAll returns them in insertion order", func() {
				all, err := q.GetAll(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
				So(all[0].Key, ShouldEqual, "t1:3")
				So(all[1].Key, ShouldEqual, "t1:1")
				So(all[2].Key, ShouldEqual, "t2:1")
				n, _ := q.Len(ctx)
				So(n, ShouldEqual, 3)
			})

			Convey("And a put on an existing key overwrites in place", func() {
				So(q.Put(ctx, model.NewPendingScore("t1", 3, 7, 400)), ShouldBeNil)
				all, err := q.GetAll(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
				So(all[0].Key, ShouldEqual, "t1:3")
				So(all[0].Strokes, ShouldEqual, 7)
				So(all[0].Timestamp, ShouldEqual, int64(400))
			})

			Convey("And Delete removes one key", func() {
				So(q.Delete(ctx, "t1:1"), ShouldBeNil)
				So(q.Delete(ctx, "missing:1"), ShouldBeNil)
				n, _ := q.Len(ctx)
				So(n, ShouldEqual, 2)
			})

			Convey("And Clear empties the queue", func() {
				So(q.Clear(ctx), ShouldBeNil)
				n, _ := q.Len(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When a confirmation arrives for an older write", func() {
			So(q.Put(ctx, model.NewPendingScore("t1", 5, 4, 100)), ShouldBeNil)
			So(q.Put(ctx, model.NewPendingScore("t1", 5, 3, 150)), ShouldBeNil)

			Convey("Then DeleteThrough keeps the newer entry", func() {
				removed, err := q.DeleteThrough(ctx, "t1:5", 100)
				So(err, ShouldBeNil)
				So(removed, ShouldBeFalse)
				all, _ := q.GetAll(ctx)
				So(all, ShouldHaveLength, 1)
				So(all[0].Strokes, ShouldEqual, 3)
			})

			Convey("And a confirmation for the latest write removes it", func() {
				removed, err := q.DeleteThrough(ctx, "t1:5", 150)
				So(err, ShouldBeNil)
				So(removed, ShouldBeTrue)
				n, _ := q.Len(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When an entry's key does not match its team and hole", func() {
			bad := model.NewPendingScore("t1", 2, 4, 1)
			bad.Key = "t1:3"

			Convey("Then Put rejects it", func() {
				So(errors.Is(q.Put(ctx, bad), ErrInvalidItem), ShouldBeTrue)
			})
		})

		Convey("When the queue is reopened", func() {
			So(q.Put(ctx, model.NewPendingScore("t9", 18, 2, 10)), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			q, err = Open(path)
			So(err, ShouldBeNil)

			Convey("Then the entries survive the restart", func() {
				all, err := q.GetAll(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
				So(all[0], ShouldResemble, model.NewPendingScore("t9", 18, 2, 10))
			})
		})

		Convey("When the database is closed underneath", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then operations fail with ErrStorage", func() {
				err := q.Put(ctx, model.NewPendingScore("t1", 1, 1, 1))
				So(errors.Is(err, ErrStorage), ShouldBeTrue)
				_, err = q.GetAll(ctx)
				So(errors.Is(err, ErrStorage), ShouldBeTrue)
			})
		})
	})
}
