package config_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scramble/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.ServerURL, convey.ShouldEqual, "http://localhost:8080")
			convey.So(cfg.RequestTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.SyncedTTL, convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.UnstartedLast, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad field each", t, func() {
		cases := map[string]func(*config.Config){
			"log level":       func(c *config.Config) { c.LogLevel = "loud" },
			"addr":            func(c *config.Config) { c.Addr = "" },
			"db path":         func(c *config.Config) { c.DBPath = "" },
			"server url":      func(c *config.Config) { c.ServerURL = "" },
			"pending db path": func(c *config.Config) { c.PendingDBPath = "" },
			"request timeout": func(c *config.Config) { c.RequestTimeout = 0 },
			"probe interval":  func(c *config.Config) { c.ProbeInterval = -time.Second },
			"synced ttl":      func(c *config.Config) { c.SyncedTTL = 0 },
			"worker count":    func(c *config.Config) { c.WorkerCount = 0 },
			"queue size":      func(c *config.Config) { c.QueueSize = 0 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
