package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it is namespaced for the tournament", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scramble")
				So(manager.subsystem, ShouldEqual, "tournament")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.latencyBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.constLabels, ShouldContainKey, "env")
				So(manager.name("submissions_total"), ShouldEqual, "test_submissions_total")
			})
		})

		Convey("When empty values are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "scramble")
				So(manager.subsystem, ShouldEqual, "tournament")
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When submissions are recorded", func() {
			before := testutil.ToFloat64(globalManager.submissions.WithLabelValues("queued"))
			RecordSubmission("queued")
			RecordSubmission("queued")

			Convey("Then the outcome counter advances", func() {
				So(testutil.ToFloat64(globalManager.submissions.WithLabelValues("queued")), ShouldEqual, before+2)
			})
		})

		Convey("When gauges are updated", func() {
			UpdatePendingQueueDepth(3)
			UpdateConnectivity(true)
			UpdateLeaderboardTeams(12)

			Convey("Then they hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.pendingQueueDepth), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.connectivityOnline), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.leaderboardTeams), ShouldEqual, 12)
			})

			UpdateConnectivity(false)
			So(testutil.ToFloat64(globalManager.connectivityOnline), ShouldEqual, 0)
		})

		Convey("When a drain completes", func() {
			runs := testutil.ToFloat64(globalManager.drainRuns)
			confirmed := testutil.ToFloat64(globalManager.drainConfirmed)
			RecordDrain(4, 1)

			Convey("Then runs and confirmations are counted", func() {
				So(testutil.ToFloat64(globalManager.drainRuns), ShouldEqual, runs+1)
				So(testutil.ToFloat64(globalManager.drainConfirmed), ShouldEqual, confirmed+4)
			})
		})

		Convey("When the registry is gathered", func() {
			RecordStoreWrite("scores", "INSERT")
			families, err := GetRegistry().Gather()

			Convey("Then scramble metrics are exported", func() {
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if strings.HasPrefix(f.GetName(), "scramble_tournament_store_writes_total") {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
