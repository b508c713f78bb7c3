package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// ErrUnknownEventType se devuelve al decodificar un tipo de evento que no
// está en el registro cerrado.
var ErrUnknownEventType = errors.New("unknown event type")

type decodeFunc func([]byte) (sharedDomain.Event, error)

// eventDecoders es el mapeo cerrado tipo-de-evento -> decodificador.
// Añadir un evento nuevo exige tocar este mapa y el switch de When, que es
// exactamente lo que queremos: nada de reflexión ni escaneo de tipos en
// runtime.
var eventDecoders = map[string]decodeFunc{
	EventTypeOrderCreated:             func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderCreatedEvent](b) },
	EventTypeOrderItemAdded:           func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderItemAddedEvent](b) },
	EventTypeOrderItemQuantityUpdated: func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderItemQuantityUpdatedEvent](b) },
	EventTypeOrderItemRemoved:         func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderItemRemovedEvent](b) },
	EventTypeOrderShippingAddressSet:  func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderShippingAddressSetEvent](b) },
	EventTypeOrderValidated:           func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderValidatedEvent](b) },
	EventTypeOrderPaymentPending:      func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderPaymentPendingEvent](b) },
	EventTypeOrderPaymentApproved:     func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderPaymentApprovedEvent](b) },
	EventTypeOrderPaymentFailed:       func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderPaymentFailedEvent](b) },
	EventTypeOrderProcessingStarted:   func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderProcessingStartedEvent](b) },
	EventTypeOrderShipped:             func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderShippedEvent](b) },
	EventTypeOrderDelivered:           func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderDeliveredEvent](b) },
	EventTypeOrderCancelled:           func(b []byte) (sharedDomain.Event, error) { return decodeAs[OrderCancelledEvent](b) },
}

func decodeAs[T any, PT interface {
	*T
	sharedDomain.Event
}](payload []byte) (sharedDomain.Event, error) {
	event := PT(new(T))
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}
	return event, nil
}

// DecodeEvent reconstruye el evento concreto a partir del nombre de tipo
// almacenado y su payload JSON.
func DecodeEvent(eventType string, payload []byte) (sharedDomain.Event, error) {
	decode, ok := eventDecoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	event, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", eventType, err)
	}
	return event, nil
}

// EncodeEvent serializa un evento de dominio a su payload JSON.
func EncodeEvent(event sharedDomain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event.EventType(), err)
	}
	return payload, nil
}

// KnownEventTypes lista los tipos registrados; lo usan el consumer de
// integración y los tests.
func KnownEventTypes() []string {
	types := make([]string, 0, len(eventDecoders))
	for t := range eventDecoders {
		types = append(types, t)
	}
	return types
}
