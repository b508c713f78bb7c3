package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// OrderAnalyticsRepo vuelca el log de eventos de pedidos en ClickHouse y
// sirve las consultas analíticas (tendencia diaria, embudo de estados).
// Se registra como handler de la suscripción de analítica: cada evento del
// feed acaba como una fila del log.
type OrderAnalyticsRepo struct {
	db *sql.DB
}

// NewOrderAnalyticsRepo es el constructor.
func NewOrderAnalyticsRepo(addr string, dbName string) (*OrderAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &OrderAnalyticsRepo{db: conn}, nil
}

// InitSchema crea la tabla del log de eventos si no existe.
func (r *OrderAnalyticsRepo) InitSchema() error {
	// Particionada por mes y ordenada por los campos habituales de consulta.
	query := `
		CREATE TABLE IF NOT EXISTS order_events_log (
			event_id    UUID,
			stream_name String,
			event_type  String,
			version     UInt32,
			global_seq  UInt64,
			recorded_at DateTime64(3),
			event_time  DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(recorded_at)
		ORDER BY (event_type, recorded_at);
	`
	_, err := r.db.Exec(query)
	return err
}

// Handle registra un evento del feed en el log analítico.
func (r *OrderAnalyticsRepo) Handle(ctx context.Context, record sharedDomain.RecordedEvent) error {
	return r.LogBatch(ctx, []sharedDomain.RecordedEvent{record})
}

// LogBatch inserta un lote de eventos. ClickHouse funciona mejor con
// inserciones en lotes.
func (r *OrderAnalyticsRepo) LogBatch(ctx context.Context, records []sharedDomain.RecordedEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO order_events_log (event_id, stream_name, event_type, version, global_seq, recorded_at, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	eventTime := time.Now()
	for _, record := range records {
		if _, err := stmt.ExecContext(
			ctx,
			record.EventID,
			record.StreamName,
			record.EventType,
			uint32(record.Version),
			uint64(record.GlobalSeq),
			record.RecordedAt,
			eventTime,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", record.EventID, err)
		}
	}

	return tx.Commit()
}

// DailyOrderTrend es la tendencia de creación/entrega por día.
type DailyOrderTrend struct {
	Day            time.Time
	CreatedCount   uint64
	DeliveredCount uint64
	CancelledCount uint64
}

func (r *OrderAnalyticsRepo) GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyOrderTrend, error) {
	query := `
		SELECT
			toStartOfDay(recorded_at) AS day,
			countIf(event_type = 'OrderCreatedEvent') AS created,
			countIf(event_type = 'OrderDeliveredEvent') AS delivered,
			countIf(event_type = 'OrderCancelledEvent') AS cancelled
		FROM order_events_log
		WHERE recorded_at BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []DailyOrderTrend
	for rows.Next() {
		var trend DailyOrderTrend
		if err := rows.Scan(&trend.Day, &trend.CreatedCount, &trend.DeliveredCount, &trend.CancelledCount); err != nil {
			return nil, err
		}
		trends = append(trends, trend)
	}
	return trends, rows.Err()
}

// StatusFunnelRow cuenta cuántos pedidos alcanzaron cada hito del ciclo.
type StatusFunnelRow struct {
	EventType string
	Orders    uint64
}

// GetStatusFunnel devuelve cuántos pedidos distintos alcanzaron cada tipo de
// evento de transición en el rango dado.
func (r *OrderAnalyticsRepo) GetStatusFunnel(ctx context.Context, start, end time.Time) ([]StatusFunnelRow, error) {
	query := `
		SELECT
			event_type,
			uniqExact(stream_name) AS orders
		FROM order_events_log
		WHERE recorded_at BETWEEN ? AND ?
		GROUP BY event_type
		ORDER BY orders DESC
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funnel []StatusFunnelRow
	for rows.Next() {
		var row StatusFunnelRow
		if err := rows.Scan(&row.EventType, &row.Orders); err != nil {
			return nil, err
		}
		funnel = append(funnel, row)
	}
	return funnel, rows.Err()
}
