package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	TripsCreatedTotal      metric.Int64Counter
	TripsDeletedTotal      metric.Int64Counter
	ActivityWritesTotal    metric.Int64Counter
	BudgetDeltasTotal      metric.Int64Counter
	BudgetRecalcsTotal     metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("voyplan")
		var err error
		m := &AppMetrics{}

		m.TripsCreatedTotal, err = meter.Int64Counter(
			"trips_created_total",
			metric.WithDescription("Total number of trips created"),
			metric.WithUnit("{trip}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create trips_created_total: %v", err)
		}

		m.TripsDeletedTotal, err = meter.Int64Counter(
			"trips_deleted_total",
			metric.WithDescription("Total number of trips deleted (with cascade)"),
			metric.WithUnit("{trip}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create trips_deleted_total: %v", err)
		}

		m.ActivityWritesTotal, err = meter.Int64Counter(
			"activity_writes_total",
			metric.WithDescription("Total number of activity create/update/delete operations"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create activity_writes_total: %v", err)
		}

		m.BudgetDeltasTotal, err = meter.Int64Counter(
			"budget_deltas_total",
			metric.WithDescription("Total number of incremental budget cost deltas applied"),
			metric.WithUnit("{delta}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create budget_deltas_total: %v", err)
		}

		m.BudgetRecalcsTotal, err = meter.Int64Counter(
			"budget_recalcs_total",
			metric.WithDescription("Total number of full budget recalculations"),
			metric.WithUnit("{recalculation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create budget_recalcs_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: failed to create db_query_duration_seconds: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the initialized metrics, initializing lazily if needed.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
