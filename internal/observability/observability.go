// Package observability turns restaurant operation callbacks into structured logs and
// Prometheus counters.
package observability

import (
	"context"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "canteen"
	labelOperation   = "operation"
	labelStatus      = "status"
	labelMethod      = "payment_method"
	operationMessage = "restaurant operation"
)

// ZapOperationLogger writes every operation as one structured log entry.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger returns an OperationLogger backed by zap.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger}
}

func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry restaurant.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.StudentID.IsZero() {
		fields = append(fields, zap.String("student_id", entry.StudentID.String()))
	}
	if !entry.ReservationID.IsZero() {
		fields = append(fields, zap.String("reservation_id", entry.ReservationID.String()))
	}
	if !entry.MenuOfferingID.IsZero() {
		fields = append(fields, zap.String("menu_offering_id", entry.MenuOfferingID.String()))
	}
	if !entry.FeedbackID.IsZero() {
		fields = append(fields, zap.String("feedback_id", entry.FeedbackID.String()))
	}
	if entry.PaymentMethod != "" {
		fields = append(fields, zap.String("payment_method", entry.PaymentMethod.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Points != 0 {
		fields = append(fields, zap.Int64("points", entry.Points.Int64()))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn(operationMessage, append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info(operationMessage, fields...)
}

// MetricsOperationLogger counts operations by outcome and sums the money they moved.
type MetricsOperationLogger struct {
	operations *prometheus.CounterVec
	amount     *prometheus.CounterVec
}

// NewMetricsOperationLogger registers the operation collectors with registerer.
func NewMetricsOperationLogger(registerer prometheus.Registerer) (*MetricsOperationLogger, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "operations_total",
		Help:      "Restaurant operations by name and outcome.",
	}, []string{labelOperation, labelStatus})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "operation_amount_cents_total",
		Help:      "Cents moved by successful restaurant operations.",
	}, []string{labelOperation, labelMethod})
	for _, collector := range []prometheus.Collector{operations, amount} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return &MetricsOperationLogger{operations: operations, amount: amount}, nil
}

func (metrics *MetricsOperationLogger) LogOperation(_ context.Context, entry restaurant.OperationLog) {
	metrics.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Error == nil && entry.Amount > 0 {
		metrics.amount.WithLabelValues(entry.Operation, entry.PaymentMethod.String()).Add(float64(entry.Amount.Int64()))
	}
}

// MultiOperationLogger fans every entry out to each wrapped logger in order.
type MultiOperationLogger []restaurant.OperationLogger

func (loggers MultiOperationLogger) LogOperation(ctx context.Context, entry restaurant.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
