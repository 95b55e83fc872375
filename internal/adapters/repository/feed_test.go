package repository

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFeed(t *testing.T) {
	Convey("Given a feed with a small buffer", t, func() {
		f := NewFeed[int]("test", 2)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("When two subscribers are registered", func() {
			a, err := f.Subscribe(ctx)
			So(err, ShouldBeNil)
			b, err := f.Subscribe(ctx)
			So(err, ShouldBeNil)
			So(f.Len(), ShouldEqual, 2)

			f.Publish(1)

			Convey("Then both receive the value", func() {
				So(<-a, ShouldEqual, 1)
				So(<-b, ShouldEqual, 1)
			})
		})

		Convey("When a subscriber falls behind by a full buffer", func() {
			slow, _ := f.Subscribe(ctx)
			f.Publish(1)
			f.Publish(2)
			f.Publish(3)

			Convey("Then it is dropped after its buffered values", func() {
				So(<-slow, ShouldEqual, 1)
				So(<-slow, ShouldEqual, 2)
				_, open := <-slow
				So(open, ShouldBeFalse)
				So(f.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the subscriber's context ends", func() {
			subCtx, subCancel := context.WithCancel(ctx)
			ch, _ := f.Subscribe(subCtx)
			subCancel()

			Convey("Then its channel is closed", func() {
				select {
				case _, open := <-ch:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					So("timed out", ShouldBeEmpty)
				}
			})
		})

		Convey("When the feed is closed", func() {
			ch, _ := f.Subscribe(ctx)
			f.Close()

			Convey("Then subscribers end and new subscriptions fail", func() {
				_, open := <-ch
				So(open, ShouldBeFalse)
				_, err := f.Subscribe(ctx)
				So(err, ShouldEqual, ErrClosed)
			})
		})
	})
}
