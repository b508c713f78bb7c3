package domain

import (
	"errors"
	"fmt"
)

// ---------- Errores de dominio ----------
//
// Tres familias, con retrys distintos:
//   - validación (input malo): nunca se reintenta;
//   - regla de negocio / transición inválida: se reintenta solo corrigiendo
//     la intención;
//   - concurrencia: recargar el aggregate y reintentar.
var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition marca los fallos de precondición de estado; el
	// mensaje envuelto siempre nombra el estado previo requerido.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrInvalidOrderState es una violación de invariantes tras aplicar un
	// evento: el aggregate en memoria queda inválido y debe descartarse.
	ErrInvalidOrderState = errors.New("order is in an invalid state")

	// Condiciones de ValidateOrder; cada una identifica qué falta.
	ErrNoItems           = errors.New("cannot validate an order without items")
	ErrNoShippingAddress = errors.New("shipping address must be set before validating an order")
	ErrBelowMinimumTotal = errors.New("order total is below the minimum order value")

	ErrTooManyProducts = fmt.Errorf("cannot add more than %d distinct products to an order", MaxDistinctProducts)
)

// ConcurrencyError señala que otro escritor modificó el stream del pedido
// entre la carga y el guardado. Es una condición esperada y recuperable:
// recargar y reintentar, no un fallo del sistema.
type ConcurrencyError struct {
	OrderID         OrderID
	ExpectedVersion int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("competing changes in order %s (expected version %d): reload the order and try again",
		e.OrderID, e.ExpectedVersion)
}

// IsConcurrencyError permite al llamante decidir su política de reintento.
func IsConcurrencyError(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}
