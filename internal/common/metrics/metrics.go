// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkflowStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_workflow_stage_total",
			Help: "Workflow stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	WorkflowStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "referral_workflow_stage_duration_seconds",
			Help: "Duration of workflow stage execution in seconds",
		},
		[]string{"stage"},
	)

	SubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_submissions_total",
			Help: "Total referral requests persisted",
		},
	)

	SignatureVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_signature_verifications_total",
			Help: "Payment signature verification attempts by result",
		},
		[]string{"result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "referral_sessions_active",
			Help: "Number of in-flight submission sessions",
		},
	)
)
