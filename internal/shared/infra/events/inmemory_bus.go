package events

import (
	"context"
	"sync"

	sharedBus "github.com/davicafu/orderflow/shared/platform/bus"
)

// BusMessage es lo que reciben los suscriptores del bus en memoria: el
// mismo trío topic/key/payload que viajaría por Kafka.
type BusMessage struct {
	Topic   string
	Key     string
	Payload []byte
}

// InMemoryEventBus implementa un bus de eventos multi-topic en memoria para
// despliegues locales y tests: mismo contrato que el publisher de Kafka.
type InMemoryEventBus struct {
	subscribers map[string][]chan BusMessage
	mu          sync.RWMutex
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]chan BusMessage),
	}
}

// Publish envía el mensaje a todos los suscriptores del topic. Los
// suscriptores con el buffer lleno pierden el mensaje: es un bus local, no
// un broker con garantías.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	msg := BusMessage{Topic: topic, Key: key, Payload: payload}
	for _, subChan := range subs {
		select {
		case subChan <- msg:
		default:
		}
	}
	return nil
}

// Subscribe suscribe un nuevo oyente al topic.
func (b *InMemoryEventBus) Subscribe(topic string, bufferSize int) <-chan BusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan BusMessage, bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], subChan)
	return subChan
}
