package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// EventPublisher publica un payload ya serializado en un topic del broker.
// La semántica del nombre de topic y el formato del payload la decides en
// los adapters.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}
