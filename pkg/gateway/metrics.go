package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opStory = "story"
	opImage = "image"
	opVideo = "video"
	opChat  = "chat"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_studio_gateway_requests_total",
			Help: "Total number of remote generation requests by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_studio_gateway_request_duration_seconds",
			Help:    "Duration of remote generation requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	videoPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "story_studio_video_poll_attempts",
			Help:    "Number of status polls until a video job finished",
			Buckets: prometheus.LinearBuckets(1, 6, 10),
		},
	)
)

// observe はリクエストの結果と所要時間を記録します。
func observe(operation string, start time.Time, err error) {
	gatewayRequestsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	gatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthenticationUnresolved):
		return "auth_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrVideoGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
