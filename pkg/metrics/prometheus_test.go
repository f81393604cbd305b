package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithRegistry(registry), WithNamespace("test"))

		Convey("Then all metrics register without collision", func() {
			So(manager, ShouldNotBeNil)
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			// gauges and counters appear after first touch; vec metrics
			// stay hidden until labeled, so only assert non-collision here
			So(families, ShouldNotBeNil)
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording collection outcomes", func() {
			before := counterValue(globalManager.usersCollected)
			RecordUserCollected()
			RecordUserCollected()
			So(counterValue(globalManager.usersCollected), ShouldEqual, before+2)

			beforeFailed := counterValue(globalManager.usersFailed)
			RecordUserFailed()
			So(counterValue(globalManager.usersFailed), ShouldEqual, beforeFailed+1)
		})

		Convey("When publishing snapshot gauges", func() {
			UpdateActiveUsers(7)
			UpdateHealthScore(61.5)
			So(gaugeValue(globalManager.activeUsers), ShouldEqual, 7.0)
			So(gaugeValue(globalManager.healthScore), ShouldEqual, 61.5)
		})

		Convey("When minting Patacoins", func() {
			before := counterValue(globalManager.patacoinsMinted)
			RecordPatacoinsMinted(43.5)
			RecordPatacoinsMinted(0)
			So(counterValue(globalManager.patacoinsMinted), ShouldEqual, before+43.5)
		})

		Convey("When observing a run", func() {
			before := counterValue(globalManager.runsTotal)
			RecordRunDuration(1.25)
			So(counterValue(globalManager.runsTotal), ShouldEqual, before+1)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		So(GetRegistry(), ShouldNotBeNil)

		Convey("Then recorded metrics are gatherable", func() {
			RecordFetchAttempt("https://api.example.test")
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["pulse_pipeline_fetch_attempts_total"], ShouldBeTrue)
		})
	})
}
