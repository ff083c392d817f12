package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FormsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facility_forms_opened_total",
			Help: "Total number of facility form sessions opened",
		},
	)

	FormsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facility_forms_active",
			Help: "Number of facility form sessions currently held in memory",
		},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facility_submissions_total",
			Help: "Total number of facility batch submissions by outcome",
		},
		[]string{"outcome"},
	)

	SubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "facility_submit_duration_seconds",
			Help: "Duration of batch submission to the ledger in seconds",
		},
	)

	BatchStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facility_batch_status_total",
			Help: "Terminal batch statuses observed by the commit watcher",
		},
		[]string{"status"},
	)
)
