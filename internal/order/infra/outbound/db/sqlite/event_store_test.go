package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, InitSQLite(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func recordedEvent(stream string, version int) sharedDomain.RecordedEvent {
	return sharedDomain.RecordedEvent{
		EventID:    uuid.New(),
		StreamName: stream,
		EventType:  "OrderCreatedEvent",
		Payload:    []byte(`{"orderId":"test"}`),
		Version:    version,
		RecordedAt: time.Now().UTC(),
	}
}

func TestEventStoreSQLite_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))

	stream := "order-" + uuid.NewString()
	events := []sharedDomain.RecordedEvent{recordedEvent(stream, 1), recordedEvent(stream, 2)}
	outbox := []sharedDomain.OutboxMessage{
		sharedDomain.NewOutboxMessage("agg-1", "OrderCreatedEvent", []byte(`{}`)),
	}

	require.NoError(t, store.Append(ctx, stream, 0, events, outbox))

	loaded, err := store.Load(ctx, stream)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, events[0].EventID, loaded[0].EventID)
	assert.Equal(t, 1, loaded[0].Version)
	assert.Equal(t, 2, loaded[1].Version)
	assert.Equal(t, stream, loaded[0].StreamName)
	assert.JSONEq(t, `{"orderId":"test"}`, string(loaded[0].Payload))
	assert.Positive(t, loaded[0].GlobalSeq)
}

func TestEventStoreSQLite_LoadEmptyStream(t *testing.T) {
	store := NewEventStoreSQLite(setupTestDB(t))
	loaded, err := store.Load(context.Background(), "order-inexistente")
	require.NoError(t, err)
	assert.Empty(t, loaded, "un stream inexistente devuelve slice vacío, no error")
}

func TestEventStoreSQLite_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))
	stream := "order-" + uuid.NewString()

	require.NoError(t, store.Append(ctx, stream, 0,
		[]sharedDomain.RecordedEvent{recordedEvent(stream, 1)}, nil))

	// dos escritores con la misma versión esperada: solo el primero gana
	err := store.Append(ctx, stream, 0,
		[]sharedDomain.RecordedEvent{recordedEvent(stream, 1)}, nil)
	assert.ErrorIs(t, err, sharedDomain.ErrVersionConflict)

	// el conflicto no deja nada escrito
	loaded, err := store.Load(ctx, stream)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestEventStoreSQLite_UniqueViolationIsVersionConflict(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewEventStoreSQLite(db)
	stream := "order-" + uuid.NewString()

	// reproduce la carrera en la que el rival pasó el chequeo de COUNT a la
	// vez que nosotros y ya escribió su versión 2: el stream tiene una sola
	// fila (COUNT = 1 = expectedVersion) pero la versión 2 está ocupada
	rival := recordedEvent(stream, 2)
	_, err := db.Exec(
		`INSERT INTO events (event_id, stream_name, event_type, payload, version, recorded_at)
		 VALUES (?,?,?,?,?,?)`,
		rival.EventID.String(), stream, rival.EventType, string(rival.Payload),
		rival.Version, rival.RecordedAt,
	)
	require.NoError(t, err)

	// el perdedor choca contra UNIQUE(stream_name, version) y debe recibir
	// un conflicto de versión, no un error genérico de infraestructura
	err = store.Append(ctx, stream, 1,
		[]sharedDomain.RecordedEvent{recordedEvent(stream, 2)}, nil)
	assert.ErrorIs(t, err, sharedDomain.ErrVersionConflict)
}

func TestEventStoreSQLite_AppendIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))
	stream := "order-" + uuid.NewString()

	// el conflicto de versión aborta también la escritura del outbox
	err := store.Append(ctx, stream, 5,
		[]sharedDomain.RecordedEvent{recordedEvent(stream, 6)},
		[]sharedDomain.OutboxMessage{sharedDomain.NewOutboxMessage("agg-1", "OrderCreatedEvent", []byte(`{}`))})
	require.ErrorIs(t, err, sharedDomain.ErrVersionConflict)

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEventStoreSQLite_ReadAll(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))

	streamA := "order-" + uuid.NewString()
	streamB := "order-" + uuid.NewString()
	require.NoError(t, store.Append(ctx, streamA, 0,
		[]sharedDomain.RecordedEvent{recordedEvent(streamA, 1), recordedEvent(streamA, 2)}, nil))
	require.NoError(t, store.Append(ctx, streamB, 0,
		[]sharedDomain.RecordedEvent{recordedEvent(streamB, 1)}, nil))

	all, err := store.ReadAll(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].GlobalSeq, all[i-1].GlobalSeq, "orden de secuencia global")
	}

	// paginación desde un checkpoint
	tail, err := store.ReadAll(ctx, all[1].GlobalSeq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, all[2].EventID, tail[0].EventID)

	limited, err := store.ReadAll(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEventStoreSQLite_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))

	msg := sharedDomain.NewOutboxMessage("agg-1", "OrderCreatedEvent", []byte(`{"x":1}`))
	require.NoError(t, store.SaveMessages(ctx, []sharedDomain.OutboxMessage{msg}))

	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msg.ID, pending[0].ID)
	assert.Equal(t, sharedDomain.OutboxPending, pending[0].Status)

	require.NoError(t, store.MarkProcessed(ctx, msg.ID))
	pending, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEventStoreSQLite_MarkProcessedUnknownID(t *testing.T) {
	store := NewEventStoreSQLite(setupTestDB(t))
	err := store.MarkProcessed(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestEventStoreSQLite_OutboxDeadLetter(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))

	msg := sharedDomain.NewOutboxMessage("agg-1", "OrderCreatedEvent", []byte(`{}`))
	require.NoError(t, store.SaveMessages(ctx, []sharedDomain.OutboxMessage{msg}))

	// hasta MaxOutboxRetries-1 fallos el mensaje sigue siendo reintentanble
	for i := 0; i < sharedDomain.MaxOutboxRetries-1; i++ {
		require.NoError(t, store.MarkFailed(ctx, msg.ID))
		pending, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1, "intento %d", i+1)
		assert.Equal(t, i+1, pending[0].RetryCount)
	}

	// el último fallo lo manda a dead-letter
	require.NoError(t, store.MarkFailed(ctx, msg.ID))
	pending, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "un mensaje failed no vuelve a entregarse")
}

func TestEventStoreSQLite_Checkpoints(t *testing.T) {
	ctx := context.Background()
	store := NewEventStoreSQLite(setupTestDB(t))

	seq, err := store.LoadCheckpoint(ctx, "projections")
	require.NoError(t, err)
	assert.Zero(t, seq, "una suscripción nueva empieza en 0")

	require.NoError(t, store.SaveCheckpoint(ctx, "projections", 42))
	require.NoError(t, store.SaveCheckpoint(ctx, "projections", 99))

	seq, err = store.LoadCheckpoint(ctx, "projections")
	require.NoError(t, err)
	assert.Equal(t, int64(99), seq)

	// suscripciones independientes
	other, err := store.LoadCheckpoint(ctx, "analytics")
	require.NoError(t, err)
	assert.Zero(t, other)
}
