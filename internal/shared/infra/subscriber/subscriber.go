package subscriber

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	sharedUtils "github.com/davicafu/orderflow/shared/utils"
)

// State es el estado explícito de la suscripción. Las transiciones válidas
// son:
//
//	Disconnected → Connecting → Subscribed
//	Subscribed   → Dropped    → Connecting (reintento con backoff)
//	Dropped      → Disconnected (agotados los reintentos)
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateDropped      State = "dropped"
)

// Handler recibe cada evento persistido del feed global. La entrega es
// at-least-once: los handlers deben ser idempotentes.
type Handler interface {
	Handle(ctx context.Context, record sharedDomain.RecordedEvent) error
}

// Options afina el comportamiento del bucle de polling.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	MaxAttempts  int
}

func defaultOptions() Options {
	return Options{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
		BackoffBase:  time.Second,
		BackoffMax:   30 * time.Second,
		MaxAttempts:  10,
	}
}

// Subscription recorre el feed global del event store desde su checkpoint
// persistido y despacha cada evento a los handlers registrados. El
// checkpoint se guarda tras cada lote procesado.
type Subscription struct {
	name        string
	store       sharedDomain.EventStore
	checkpoints sharedDomain.CheckpointStore
	handlers    []Handler
	opts        Options
	log         *zap.Logger

	mu    sync.Mutex
	state State
}

func NewSubscription(
	name string,
	store sharedDomain.EventStore,
	checkpoints sharedDomain.CheckpointStore,
	handlers []Handler,
	opts Options,
	log *zap.Logger,
) *Subscription {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultOptions().PollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultOptions().BatchSize
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultOptions().BackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultOptions().BackoffMax
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultOptions().MaxAttempts
	}

	return &Subscription{
		name:        name,
		store:       store,
		checkpoints: checkpoints,
		handlers:    handlers,
		opts:        opts,
		log:         log,
		state:       StateDisconnected,
	}
}

// State devuelve el estado actual de la suscripción.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Run ejecuta la máquina de estados hasta que el contexto se cancela o se
// agotan los reintentos de reconexión. Agotar los reintentos deja la
// suscripción en Disconnected: requiere reinicio del operador, no hay
// reintento infinito silencioso.
func (s *Subscription) Run(ctx context.Context) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateDisconnected)
			return err
		}

		s.setState(StateConnecting)
		checkpoint, err := s.checkpoints.LoadCheckpoint(ctx, s.name)
		if err != nil {
			if !s.backoffOrGiveUp(ctx, &attempt, err) {
				return err
			}
			continue
		}

		s.setState(StateSubscribed)
		s.log.Info("📡 Suscripción conectada",
			zap.String("subscription", s.name),
			zap.Int64("checkpoint", checkpoint),
		)

		checkpoint, err = s.poll(ctx, checkpoint, &attempt)
		if err == nil {
			// solo sale de poll sin error por cancelación
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		s.setState(StateDropped)
		s.log.Warn("⚠️ Suscripción caída",
			zap.String("subscription", s.name),
			zap.Int64("checkpoint", checkpoint),
			zap.Error(err),
		)
		if !s.backoffOrGiveUp(ctx, &attempt, err) {
			return err
		}
	}
}

// poll consume el feed en lotes hasta que falla el store o se cancela el
// contexto. Devuelve el último checkpoint confirmado. El contador de
// reintentos se resetea tras cada lectura exitosa, no al conectar: así una
// suscripción que conecta pero nunca consigue leer acaba agotando intentos.
func (s *Subscription) poll(ctx context.Context, checkpoint int64, attempt *int) (int64, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		records, err := s.store.ReadAll(ctx, checkpoint, s.opts.BatchSize)
		if err != nil {
			return checkpoint, err
		}
		*attempt = 0

		for _, record := range records {
			s.dispatch(ctx, record)
			checkpoint = record.GlobalSeq
		}

		if len(records) > 0 {
			if err := s.checkpoints.SaveCheckpoint(ctx, s.name, checkpoint); err != nil {
				return checkpoint, err
			}
			// con el lote lleno puede haber más eventos esperando
			if len(records) == s.opts.BatchSize {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return checkpoint, nil
		case <-ticker.C:
		}
	}
}

// dispatch entrega el evento a todos los handlers. Un handler que falla se
// registra y no detiene a los demás: con entrega at-least-once el evento
// puede llegar de nuevo, y parar el feed por un handler roto dejaría al
// resto sin avanzar.
func (s *Subscription) dispatch(ctx context.Context, record sharedDomain.RecordedEvent) {
	for _, handler := range s.handlers {
		if err := handler.Handle(ctx, record); err != nil {
			s.log.Error("Error en handler de proyección",
				zap.String("subscription", s.name),
				zap.String("event_type", record.EventType),
				zap.Int64("global_seq", record.GlobalSeq),
				zap.Error(err),
			)
		}
	}
}

// backoffOrGiveUp espera el backoff del intento actual; devuelve false si se
// agotaron los reintentos o se canceló el contexto.
func (s *Subscription) backoffOrGiveUp(ctx context.Context, attempt *int, cause error) bool {
	*attempt++
	if *attempt >= s.opts.MaxAttempts {
		s.setState(StateDisconnected)
		s.log.Error("🛑 Suscripción agotó los reintentos, se requiere reinicio",
			zap.String("subscription", s.name),
			zap.Int("attempts", *attempt),
			zap.Error(cause),
		)
		return false
	}

	delay := sharedUtils.Backoff(*attempt-1, s.opts.BackoffBase, s.opts.BackoffMax)
	s.log.Info("🔁 Reintentando suscripción",
		zap.String("subscription", s.name),
		zap.Int("attempt", *attempt),
		zap.Duration("delay", delay),
	)

	select {
	case <-ctx.Done():
		s.setState(StateDisconnected)
		return false
	case <-time.After(delay):
		return true
	}
}
