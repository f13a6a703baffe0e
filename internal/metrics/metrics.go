// Package metrics exposes Prometheus counters and gauges for map sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so several collectors can live in one
// process, e.g. in tests.
type Collector struct {
	registry *prometheus.Registry

	sessionsCreated  prometheus.Counter
	sessionsRestored prometheus.Counter
	sessionsActive   prometheus.Gauge
	clicks           *prometheus.CounterVec
	exercisesScored  prometheus.Counter
	livesLost        prometheus.Counter
	gameOvers        *prometheus.CounterVec
	mapsFinished     prometheus.Counter
	finalScoreRatio  prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "map_sessions_created_total",
			Help: "Total number of map sessions started",
		}),
		sessionsRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "map_sessions_restored_total",
			Help: "Total number of map sessions restored from storage",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "map_sessions_active",
			Help: "Number of map sessions held in memory",
		}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "map_stage_clicks_total",
			Help: "Stage clicks by outcome",
		}, []string{"outcome"}),
		exercisesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "map_exercises_scored_total",
			Help: "Total number of exercise results received",
		}),
		livesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "map_lives_lost_total",
			Help: "Total number of lives lost",
		}),
		gameOvers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "map_game_overs_total",
			Help: "Game overs by reason",
		}, []string{"reason"}),
		mapsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "map_finished_total",
			Help: "Total number of maps finished",
		}),
		finalScoreRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "map_final_score_ratio",
			Help:    "Score divided by maximum score at finish",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
	c.registry.MustRegister(
		c.sessionsCreated,
		c.sessionsRestored,
		c.sessionsActive,
		c.clicks,
		c.exercisesScored,
		c.livesLost,
		c.gameOvers,
		c.mapsFinished,
		c.finalScoreRatio,
	)
	return c
}

// Registry is the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SessionCreated()  { c.sessionsCreated.Inc() }
func (c *Collector) SessionRestored() { c.sessionsRestored.Inc() }
func (c *Collector) SessionOpened()   { c.sessionsActive.Inc() }
func (c *Collector) SessionClosed()   { c.sessionsActive.Dec() }
func (c *Collector) ExerciseScored()  { c.exercisesScored.Inc() }
func (c *Collector) LifeLost()        { c.livesLost.Inc() }

// Click counts a stage click; outcome is "opened", "locked", "restricted"
// or "special".
func (c *Collector) Click(outcome string) {
	c.clicks.WithLabelValues(outcome).Inc()
}

func (c *Collector) GameOver(reason string) {
	c.gameOvers.WithLabelValues(reason).Inc()
}

// Finished records a finished map and its final score.
func (c *Collector) Finished(score, maxScore int) {
	c.mapsFinished.Inc()
	if maxScore > 0 {
		c.finalScoreRatio.Observe(float64(score) / float64(maxScore))
	}
}
