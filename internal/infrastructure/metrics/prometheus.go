package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SurveysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "road_inspector_surveys_total",
		Help: "Total number of processed survey videos, by status",
	}, []string{"status"})

	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "road_inspector_frames_processed_total",
		Help: "Total number of frames passed through the detector",
	})

	DefectsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "road_inspector_defects_detected_total",
		Help: "Total number of detected defects, by defect type",
	}, []string{"defect_type"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "road_inspector_stage_duration_seconds",
		Help:    "Duration of survey pipeline stages",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ConditionRating = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "road_inspector_condition_rating",
		Help:    "Distribution of computed condition ratings",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	EngineWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "road_inspector_engine_wait_seconds",
		Help:    "Time spent waiting for a free inference engine",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	EnginesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "road_inspector_engines_in_use",
		Help: "Number of inference engines currently held by requests",
	})
)
