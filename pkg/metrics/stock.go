package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics records ledger activity for dashboards and alerting.
type StockMetrics struct {
	movements *prometheus.CounterVec
	conflicts prometheus.Counter
	lowStock  prometheus.Gauge
}

// NewStockMetrics registers the ledger metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Stock movements recorded, by movement type.",
	}, []string{"type"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservation_conflicts_total",
		Help: "Reservations rejected because stock was insufficient or contended.",
	})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stock_low_materials",
		Help: "Materials currently at or below the low stock threshold.",
	})
	reg.MustRegister(movements, conflicts, lowStock)
	return &StockMetrics{
		movements: movements,
		conflicts: conflicts,
		lowStock:  lowStock,
	}
}

// IncMovement increments the movement counter for the given movement type.
func (s *StockMetrics) IncMovement(movementType string) {
	if s == nil || s.movements == nil {
		return
	}
	s.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// IncConflict increments the reservation conflict counter.
func (s *StockMetrics) IncConflict() {
	if s == nil || s.conflicts == nil {
		return
	}
	s.conflicts.Inc()
}

// SetLowStock records the current number of low stock materials.
func (s *StockMetrics) SetLowStock(count int) {
	if s == nil || s.lowStock == nil {
		return
	}
	s.lowStock.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
