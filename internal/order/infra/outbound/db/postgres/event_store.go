package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// EventStorePostgres implementa el mismo contrato que el adapter SQLite
// sobre Postgres (driver pgx vía database/sql). Es el backend para
// despliegues con más de una instancia: el chequeo de versión va en la
// transacción y la UNIQUE(stream_name, version) resuelve las carreras entre
// instancias.
type EventStorePostgres struct {
	db *sql.DB
}

var (
	_ sharedDomain.EventStore      = (*EventStorePostgres)(nil)
	_ sharedDomain.OutboxStore     = (*EventStorePostgres)(nil)
	_ sharedDomain.CheckpointStore = (*EventStorePostgres)(nil)
)

func NewEventStorePostgres(db *sql.DB) *EventStorePostgres {
	return &EventStorePostgres{db: db}
}

// InitPostgres crea las tablas de eventos, outbox y checkpoints si no existen.
func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            global_seq BIGSERIAL PRIMARY KEY,
            event_id UUID UNIQUE NOT NULL,
            stream_name TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload JSONB NOT NULL,
            version INT NOT NULL,
            recorded_at TIMESTAMPTZ NOT NULL,
            UNIQUE(stream_name, version)
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS outbox (
            id UUID PRIMARY KEY,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload JSONB NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at TIMESTAMPTZ NOT NULL,
            processed_at TIMESTAMPTZ,
            retry_count INT NOT NULL DEFAULT 0
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS checkpoints (
            subscription TEXT PRIMARY KEY,
            seq BIGINT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )
    `)
	return err
}

// ------------------ Event store ------------------

func (s *EventStorePostgres) Append(ctx context.Context, stream string, expectedVersion int, events []sharedDomain.RecordedEvent, outbox []sharedDomain.OutboxMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var current int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE stream_name = $1`, stream,
	).Scan(&current); err != nil {
		return err
	}
	if current != expectedVersion {
		err = fmt.Errorf("%w: stream %s is at version %d, expected %d",
			sharedDomain.ErrVersionConflict, stream, current, expectedVersion)
		return err
	}

	for _, event := range events {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO events (event_id, stream_name, event_type, payload, version, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			event.EventID, stream, event.EventType, event.Payload, event.Version, event.RecordedAt,
		); err != nil {
			// dos escritores pueden pasar el chequeo de COUNT a la vez; el
			// perdedor choca contra UNIQUE(stream_name, version) y eso sigue
			// siendo un conflicto de versión, no un fallo de infraestructura
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: stream %s already has version %d",
					sharedDomain.ErrVersionConflict, stream, event.Version)
				return err
			}
			return fmt.Errorf("failed to insert event %s: %w", event.EventID, err)
		}
	}

	for _, msg := range outbox {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (id, aggregate_id, event_type, payload, status, created_at, retry_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			msg.ID, msg.AggregateID, msg.EventType, msg.Payload, string(msg.Status),
			msg.CreatedAt, msg.RetryCount,
		); err != nil {
			return fmt.Errorf("failed to insert outbox message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// isUniqueViolation detecta el SQLSTATE 23505 (unique_violation) de Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *EventStorePostgres) Load(ctx context.Context, stream string) ([]sharedDomain.RecordedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_seq, event_id, event_type, payload, version, recorded_at
		 FROM events
		 WHERE stream_name = $1
		 ORDER BY version`, stream,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.RecordedEvent
	for rows.Next() {
		var e sharedDomain.RecordedEvent
		if err := rows.Scan(&e.GlobalSeq, &e.EventID, &e.EventType, &e.Payload,
			&e.Version, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.StreamName = stream
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *EventStorePostgres) ReadAll(ctx context.Context, after int64, limit int) ([]sharedDomain.RecordedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_seq, event_id, stream_name, event_type, payload, version, recorded_at
		 FROM events
		 WHERE global_seq > $1
		 ORDER BY global_seq
		 LIMIT $2`, after, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.RecordedEvent
	for rows.Next() {
		var e sharedDomain.RecordedEvent
		if err := rows.Scan(&e.GlobalSeq, &e.EventID, &e.StreamName, &e.EventType,
			&e.Payload, &e.Version, &e.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------- Patrón Outbox en Eventos-----------------

func (s *EventStorePostgres) SaveMessages(ctx context.Context, messages []sharedDomain.OutboxMessage) error {
	for _, msg := range messages {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO outbox (id, aggregate_id, event_type, payload, status, created_at, retry_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			msg.ID, msg.AggregateID, msg.EventType, msg.Payload, string(msg.Status),
			msg.CreatedAt, msg.RetryCount,
		); err != nil {
			return fmt.Errorf("failed to insert outbox message %s: %w", msg.ID, err)
		}
	}
	return nil
}

// FetchPending reclama mensajes pendientes marcándolos como 'processing' en
// la misma sentencia. Los locks de FOR UPDATE se sueltan al terminar la
// sentencia en autocommit, así que el cambio de estado es lo que evita que
// dos workers publiquen el mismo mensaje; SKIP LOCKED solo reparte las filas
// entre workers concurrentes dentro de la sentencia.
func (s *EventStorePostgres) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE outbox SET status = 'processing'
		 WHERE id IN (
		     SELECT id FROM outbox
		     WHERE status = 'pending'
		     ORDER BY created_at
		     LIMIT $1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, aggregate_id, event_type, payload, status, created_at, processed_at, retry_count`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []sharedDomain.OutboxMessage
	for rows.Next() {
		var msg sharedDomain.OutboxMessage
		var status string
		var processedAt sql.NullTime

		if err := rows.Scan(&msg.ID, &msg.AggregateID, &msg.EventType, &msg.Payload,
			&status, &msg.CreatedAt, &processedAt, &msg.RetryCount); err != nil {
			return nil, err
		}
		msg.Status = sharedDomain.OutboxStatus(status)
		if processedAt.Valid {
			t := processedAt.Time
			msg.ProcessedAt = &t
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *EventStorePostgres) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'processed', processed_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as processed: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for outbox message %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("no outbox message found with id %s", id)
	}
	return nil
}

func (s *EventStorePostgres) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET retry_count = retry_count + 1,
		     status = CASE WHEN retry_count + 1 >= $1 THEN 'failed' ELSE 'pending' END
		 WHERE id = $2`,
		sharedDomain.MaxOutboxRetries, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as failed: %w", id, err)
	}
	return nil
}

// ------------------ Checkpoints ------------------

func (s *EventStorePostgres) LoadCheckpoint(ctx context.Context, subscription string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM checkpoints WHERE subscription = $1`, subscription,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *EventStorePostgres) SaveCheckpoint(ctx context.Context, subscription string, seq int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (subscription, seq, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (subscription) DO UPDATE SET seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at`,
		subscription, seq, time.Now().UTC(),
	)
	return err
}
