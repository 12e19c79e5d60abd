// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Name:      "games_started_total",
		Help:      "Games started or restarted.",
	})
	GamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Name:      "games_completed_total",
		Help:      "Games that reached the complete state.",
	})
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Name:      "answers_total",
		Help:      "Question outcomes by feedback.",
	}, []string{"feedback"})
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Name:      "registrations_total",
		Help:      "Successful user registrations.",
	})
	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Name:      "login_failures_total",
		Help:      "Rejected login attempts.",
	})
)
