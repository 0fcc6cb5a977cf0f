package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AnswersGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_answers_graded_total",
			Help: "Answers graded, labelled by outcome",
		},
		[]string{"result"},
	)

	LevelsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_levels_completed_total",
			Help: "Level completion submissions, labelled by outcome",
		},
		[]string{"result"},
	)

	XPCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "learning_xp_credited_total",
			Help: "Total XP credited to students",
		},
	)

	CurriculumImports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculum_imports_total",
			Help: "Curriculum import runs, labelled by outcome",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AnswersGraded)
	prometheus.MustRegister(LevelsCompleted)
	prometheus.MustRegister(XPCredited)
	prometheus.MustRegister(CurriculumImports)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
