package services

import "github.com/prometheus/client_golang/prometheus"

// donationOutcomes counts pipeline decisions by outcome
// (accepted/blocked/duplicate/ignored).
var donationOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "donation_pipeline_total",
		Help: "Total number of pipeline decisions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(donationOutcomes)
}
