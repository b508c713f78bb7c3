package domain

import "context"

// ---------- Interfaces (Ports) ----------

// OrderRepository carga un Order reproduciendo su stream de eventos y lo
// guarda anexando los eventos sin confirmar con chequeo de versión.
type OrderRepository interface {
	// Load debe devolver ErrOrderNotFound si el stream no existe.
	Load(ctx context.Context, id OrderID) (*Order, error)

	// Save devuelve *ConcurrencyError si el stream avanzó desde la carga.
	// Tras un guardado exitoso los eventos sin confirmar quedan limpios.
	Save(ctx context.Context, order *Order) error
}
