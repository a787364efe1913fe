package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-recipient send outcomes.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_deliveries_total",
			Help: "Newsletter deliveries by outcome",
		},
		[]string{"outcome"}, // sent, failed
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_broadcasts_total",
			Help: "Finished broadcasts by final status",
		},
		[]string{"status"},
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_broadcast_duration_seconds",
			Help:    "Wall time of a broadcast run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		},
	)

	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_subscription_events_total",
			Help: "Subscribe and unsubscribe events",
		},
		[]string{"event"}, // subscribed, reactivated, unsubscribed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

func RecordDelivery(outcome string) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
}

func RecordBroadcast(status string, d time.Duration) {
	BroadcastsTotal.WithLabelValues(status).Inc()
	BroadcastDuration.Observe(d.Seconds())
}

func RecordSubscription(event string) {
	SubscriptionsTotal.WithLabelValues(event).Inc()
}

// Middleware observes request duration labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}
