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
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.updatesReceived.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ns_test_sub_updates_received_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating two managers on the same registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording ingest counters", func() {
			before := testutil.ToFloat64(globalManager.updatesReceived)
			RecordUpdateReceived()
			RecordUpdateReceived()

			Convey("Then the counter moves", func() {
				So(testutil.ToFloat64(globalManager.updatesReceived)-before, ShouldEqual, 2)
			})
		})

		Convey("When recording labelled counters", func() {
			RecordUpdateClassified("injury", "critical")
			RecordQueueDropped("low")
			RecordProcessingError("panic")
			RecordAlert("urgentAlert")
			RecordEventPublished("playerUpdate")
			RecordEventDropped("redis")
			RecordFeedMessage("espn")
			RecordFeedReconnect("espn")
			RecordHTTPRequest("players", "GET", "200", 1.5)
			RecordErrorByComponent("queue", "closed")

			Convey("Then the vectors have series", func() {
				So(testutil.ToFloat64(globalManager.updatesClassified.WithLabelValues("injury", "critical")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.queueDropped.WithLabelValues("low")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateQueueSize(12)
			UpdateWorkerCount(4)
			UpdateTrackedState(30, 2)
			UpdatePaused(true)
			UpdateFeedStatus("espn", true, false)

			Convey("Then the gauges hold the values", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.playersTracked), ShouldEqual, 30)
				So(testutil.ToFloat64(globalManager.enginePaused), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.feedConnected.WithLabelValues("espn")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.feedStale.WithLabelValues("espn")), ShouldEqual, 0)
			})
			UpdatePaused(false)
		})

		Convey("When histograms observe values", func() {
			So(func() {
				RecordTick("interval", 3.2)
				RecordBatchSize(7)
				RecordUpdateProcessed("stat_delta", 0.4, 12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("When the registry is gathered", func() {
			families, err := GetRegistry().Gather()

			Convey("Then engine metrics are present", func() {
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "fantasylive_engine_queue_size")
			})
		})
	})
}
