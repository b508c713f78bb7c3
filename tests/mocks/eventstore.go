package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// InMemoryEventStore simula el event store con outbox incluido: respeta la
// semántica de Append (chequeo de expectedVersion y atomicidad evento+outbox)
// para que los tests de repositorio y relayer ejerciten el mismo contrato que
// las implementaciones SQL.
type InMemoryEventStore struct {
	mu          sync.Mutex
	streams     map[string][]sharedDomain.RecordedEvent
	global      []sharedDomain.RecordedEvent
	outbox      []sharedDomain.OutboxMessage
	checkpoints map[string]int64
	globalSeq   int64

	// AppendErr fuerza el fallo de la siguiente llamada a Append.
	AppendErr error
}

var (
	_ sharedDomain.EventStore      = (*InMemoryEventStore)(nil)
	_ sharedDomain.OutboxStore     = (*InMemoryEventStore)(nil)
	_ sharedDomain.CheckpointStore = (*InMemoryEventStore)(nil)
)

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams:     make(map[string][]sharedDomain.RecordedEvent),
		checkpoints: make(map[string]int64),
	}
}

func (s *InMemoryEventStore) Append(ctx context.Context, stream string, expectedVersion int, events []sharedDomain.RecordedEvent, outbox []sharedDomain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		err := s.AppendErr
		s.AppendErr = nil
		return err
	}

	if len(s.streams[stream]) != expectedVersion {
		return sharedDomain.ErrVersionConflict
	}

	for _, event := range events {
		s.globalSeq++
		event.GlobalSeq = s.globalSeq
		s.streams[stream] = append(s.streams[stream], event)
		s.global = append(s.global, event)
	}
	s.outbox = append(s.outbox, outbox...)
	return nil
}

func (s *InMemoryEventStore) Load(ctx context.Context, stream string) ([]sharedDomain.RecordedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sharedDomain.RecordedEvent(nil), s.streams[stream]...), nil
}

func (s *InMemoryEventStore) ReadAll(ctx context.Context, after int64, limit int) ([]sharedDomain.RecordedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []sharedDomain.RecordedEvent
	for _, event := range s.global {
		if event.GlobalSeq > after {
			out = append(out, event)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ------------------- Outbox -------------------

func (s *InMemoryEventStore) SaveMessages(ctx context.Context, messages []sharedDomain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, messages...)
	return nil
}

func (s *InMemoryEventStore) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []sharedDomain.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status == sharedDomain.OutboxPending {
			pending = append(pending, msg)
			if len(pending) >= limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *InMemoryEventStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			now := time.Now().UTC()
			s.outbox[i].Status = sharedDomain.OutboxProcessed
			s.outbox[i].ProcessedAt = &now
			return nil
		}
	}
	return nil
}

func (s *InMemoryEventStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].RetryCount++
			if s.outbox[i].RetryCount >= sharedDomain.MaxOutboxRetries {
				s.outbox[i].Status = sharedDomain.OutboxFailed
			} else {
				s.outbox[i].Status = sharedDomain.OutboxPending
			}
			return nil
		}
	}
	return nil
}

// ------------------- Checkpoints -------------------

func (s *InMemoryEventStore) LoadCheckpoint(ctx context.Context, subscription string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoints == nil {
		return 0, nil
	}
	return s.checkpoints[subscription], nil
}

func (s *InMemoryEventStore) SaveCheckpoint(ctx context.Context, subscription string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoints == nil {
		s.checkpoints = make(map[string]int64)
	}
	s.checkpoints[subscription] = seq
	return nil
}

// OutboxMessages devuelve una copia de todas las filas para inspección.
func (s *InMemoryEventStore) OutboxMessages() []sharedDomain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sharedDomain.OutboxMessage(nil), s.outbox...)
}
