package domain

import "context"

// CheckpointStore persiste la posición del feed global hasta la que cada
// suscripción ha procesado eventos. El checkpoint se guarda tras cada lote,
// por lo que la entrega es at-least-once: las proyecciones deben ser
// idempotentes.
type CheckpointStore interface {
	// LoadCheckpoint devuelve la última posición confirmada de la
	// suscripción, o 0 si nunca ha procesado nada.
	LoadCheckpoint(ctx context.Context, subscription string) (int64, error)

	// SaveCheckpoint registra la posición hasta la que se ha procesado.
	SaveCheckpoint(ctx context.Context, subscription string, seq int64) error
}
