package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	// "github.com/mattn/go-sqlite3" // better performance but requires gcc
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// EventStoreSQLite implementa el event store, la tabla outbox y los
// checkpoints de suscripción sobre una única base SQLite. Es el backend por
// defecto para despliegues locales.
type EventStoreSQLite struct {
	db *sql.DB
}

var (
	_ sharedDomain.EventStore      = (*EventStoreSQLite)(nil)
	_ sharedDomain.OutboxStore     = (*EventStoreSQLite)(nil)
	_ sharedDomain.CheckpointStore = (*EventStoreSQLite)(nil)
)

func NewEventStoreSQLite(db *sql.DB) *EventStoreSQLite {
	return &EventStoreSQLite{db: db}
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea las tablas de eventos, outbox y checkpoints si no existen.
func InitSQLite(db *sql.DB) error {
	// Log de eventos: global_seq da el orden total del feed y la pareja
	// (stream_name, version) garantiza unicidad por stream, que es lo que
	// sostiene el optimistic concurrency incluso ante dos Append simultáneos.
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            global_seq INTEGER PRIMARY KEY AUTOINCREMENT,
            event_id TEXT UNIQUE NOT NULL,
            stream_name TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload TEXT NOT NULL,
            version INTEGER NOT NULL,
            recorded_at DATETIME NOT NULL,
            UNIQUE(stream_name, version)
        )
    `)
	if err != nil {
		return err
	}

	// Tabla de Outbox
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS outbox (
            id TEXT PRIMARY KEY,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            retry_count INTEGER NOT NULL DEFAULT 0
        )
    `)
	if err != nil {
		return err
	}

	// Checkpoints de suscripciones
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS checkpoints (
            subscription TEXT PRIMARY KEY,
            seq INTEGER NOT NULL,
            updated_at DATETIME NOT NULL
        )
    `)
	return err
}

// ------------------ Event store ------------------

// Append escribe eventos y filas de outbox en una sola transacción: o se
// persisten ambos o ninguno. El chequeo de versión va dentro de la misma
// transacción y la UNIQUE(stream_name, version) actúa de red de seguridad
// ante carreras.
func (s *EventStoreSQLite) Append(ctx context.Context, stream string, expectedVersion int, events []sharedDomain.RecordedEvent, outbox []sharedDomain.OutboxMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var current int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE stream_name = ?`, stream,
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
			 VALUES (?,?,?,?,?,?)`,
			event.EventID.String(), stream, event.EventType, string(event.Payload),
			event.Version, event.RecordedAt,
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
			 VALUES (?,?,?,?,?,?,?)`,
			msg.ID.String(), msg.AggregateID, msg.EventType, string(msg.Payload),
			string(msg.Status), msg.CreatedAt, msg.RetryCount,
		); err != nil {
			return fmt.Errorf("failed to insert outbox message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// isUniqueViolation detecta el código extendido SQLITE_CONSTRAINT_UNIQUE.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (s *EventStoreSQLite) Load(ctx context.Context, stream string) ([]sharedDomain.RecordedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_seq, event_id, event_type, payload, version, recorded_at
		 FROM events
		 WHERE stream_name = ?
		 ORDER BY version`, stream,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows, stream)
}

func (s *EventStoreSQLite) ReadAll(ctx context.Context, after int64, limit int) ([]sharedDomain.RecordedEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_seq, event_id, stream_name, event_type, payload, version, recorded_at
		 FROM events
		 WHERE global_seq > ?
		 ORDER BY global_seq
		 LIMIT ?`, after, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.RecordedEvent
	for rows.Next() {
		var e sharedDomain.RecordedEvent
		var idStr, payload string
		if err := rows.Scan(&e.GlobalSeq, &idStr, &e.StreamName, &e.EventType,
			&payload, &e.Version, &e.RecordedAt); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in events row: %w", err)
		}
		e.EventID = parsedID
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvents(rows *sql.Rows, stream string) ([]sharedDomain.RecordedEvent, error) {
	var events []sharedDomain.RecordedEvent
	for rows.Next() {
		var e sharedDomain.RecordedEvent
		var idStr, payload string
		if err := rows.Scan(&e.GlobalSeq, &idStr, &e.EventType, &payload,
			&e.Version, &e.RecordedAt); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in events row: %w", err)
		}
		e.EventID = parsedID
		e.StreamName = stream
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------- Patrón Outbox en Eventos-----------------

func (s *EventStoreSQLite) SaveMessages(ctx context.Context, messages []sharedDomain.OutboxMessage) error {
	for _, msg := range messages {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO outbox (id, aggregate_id, event_type, payload, status, created_at, retry_count)
			 VALUES (?,?,?,?,?,?,?)`,
			msg.ID.String(), msg.AggregateID, msg.EventType, string(msg.Payload),
			string(msg.Status), msg.CreatedAt, msg.RetryCount,
		); err != nil {
			return fmt.Errorf("failed to insert outbox message %s: %w", msg.ID, err)
		}
	}
	return nil
}

// FetchPending obtiene mensajes pendientes, los más antiguos primero.
func (s *EventStoreSQLite) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, status, created_at, processed_at, retry_count
		 FROM outbox
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []sharedDomain.OutboxMessage
	for rows.Next() {
		var msg sharedDomain.OutboxMessage
		var idStr, status, payload string
		var processedAt sql.NullTime

		if err := rows.Scan(&idStr, &msg.AggregateID, &msg.EventType, &payload,
			&status, &msg.CreatedAt, &processedAt, &msg.RetryCount); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		msg.ID = parsedID
		msg.Status = sharedDomain.OutboxStatus(status)
		msg.Payload = []byte(payload)
		if processedAt.Valid {
			t := processedAt.Time
			msg.ProcessedAt = &t
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkProcessed marca un mensaje como publicado.
func (s *EventStoreSQLite) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'processed', processed_at = ? WHERE id = ?`,
		time.Now().UTC(), id.String(),
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

// MarkFailed incrementa el contador de reintentos; al llegar al máximo el
// mensaje queda en dead-letter (failed) y deja de reintentarse.
func (s *EventStoreSQLite) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET retry_count = retry_count + 1,
		     status = CASE WHEN retry_count + 1 >= ? THEN 'failed' ELSE 'pending' END
		 WHERE id = ?`,
		sharedDomain.MaxOutboxRetries, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s as failed: %w", id, err)
	}
	return nil
}

// ------------------ Checkpoints ------------------

func (s *EventStoreSQLite) LoadCheckpoint(ctx context.Context, subscription string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM checkpoints WHERE subscription = ?`, subscription,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *EventStoreSQLite) SaveCheckpoint(ctx context.Context, subscription string, seq int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (subscription, seq, updated_at) VALUES (?,?,?)
		 ON CONFLICT(subscription) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at`,
		subscription, seq, time.Now().UTC(),
	)
	return err
}
