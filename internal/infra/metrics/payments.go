package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentRevenueMinor,
		duplicateActivationsTotal,
		signatureFailuresTotal,
	)
}

var (
	// Payments by terminal-or-initiated status (pending/success/failed/refunded).
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment records by status transition.",
		},
		[]string{"status"},
	)

	// Revenue recognized at activation, in minor currency units.
	paymentRevenueMinor = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_revenue_minor_units_total",
			Help: "Sum of activated payment amounts in minor units per currency.",
		},
		[]string{"currency"},
	)

	// Confirmations that hit an already-activated record (retries, double
	// submits, webhook-vs-confirm races).
	duplicateActivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_duplicate_activations_total",
			Help: "Activation attempts resolved against an existing Success record.",
		},
	)

	// Rejected gateway signatures by surface (confirm|webhook).
	signatureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_signature_failures_total",
			Help: "Signature verification failures by surface.",
		},
		[]string{"surface"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountMinor int64) {
	paymentRevenueMinor.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func IncDuplicateActivation() { duplicateActivationsTotal.Inc() }

func IncSignatureFailure(surface string) {
	signatureFailuresTotal.WithLabelValues(norm(surface)).Inc()
}
