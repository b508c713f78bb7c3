package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	sharedEvents "github.com/davicafu/orderflow/shared/events"
	sharedBus "github.com/davicafu/orderflow/shared/platform/bus"
)

// Worker publica los mensajes pendientes de la tabla outbox en el broker.
// Cada mensaje se publica y se marca individualmente: el fallo de uno no
// bloquea al resto del lote, y un mensaje que acumula demasiados fallos
// acaba en dead-letter vía MarkFailed.
type Worker struct {
	store     sharedDomain.OutboxStore
	publisher sharedBus.EventPublisher
	interval  time.Duration
	batchSize int
	log       *zap.Logger
}

func NewOutboxWorker(
	store sharedDomain.OutboxStore,
	publisher sharedBus.EventPublisher,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Start inicia el bucle de polling del worker.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

func (w *Worker) ProcessBatch(ctx context.Context) {
	messages, err := w.store.FetchPending(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener mensajes pendientes", zap.Error(err))
		return
	}
	if len(messages) > 0 {
		w.log.Info(fmt.Sprintf("📬 %d mensajes encontrados para publicar", len(messages)))
	}

	for _, msg := range messages {
		w.publishAndMark(ctx, msg)
	}
}

func (w *Worker) publishAndMark(ctx context.Context, msg sharedDomain.OutboxMessage) {
	// El topic se deriva del tipo de evento: OrderCreatedEvent -> order-created.
	topic := sharedEvents.TopicForEventType(msg.EventType)

	envelope, err := json.Marshal(sharedEvents.IntegrationEvent{
		Type:      msg.EventType,
		Timestamp: msg.CreatedAt,
		Data:      msg.Payload,
	})
	if err != nil {
		w.log.Error("Error al serializar el envelope de integración",
			zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}

	// AggregateID como key: todos los eventos de un pedido van a la misma
	// partición y conservan su orden relativo.
	if err := w.publisher.Publish(ctx, topic, msg.AggregateID, envelope); err != nil {
		w.log.Warn("⚠️ No se pudo publicar mensaje",
			zap.String("message_id", msg.ID.String()),
			zap.String("topic", topic),
			zap.Int("retry_count", msg.RetryCount),
			zap.Error(err),
		)
		if err := w.store.MarkFailed(ctx, msg.ID); err != nil {
			w.log.Warn("⚠️ No se pudo registrar el fallo", zap.String("message_id", msg.ID.String()), zap.Error(err))
		}
		return
	}

	if err := w.store.MarkProcessed(ctx, msg.ID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar mensaje como procesado",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
	} else {
		w.log.Info("✅ Mensaje publicado y marcado",
			zap.String("message_id", msg.ID.String()),
			zap.String("topic", topic),
		)
	}
}
