package events

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
)

// Base de todos los eventos de integración que viajan por el broker.
// Data lleva el payload específico del evento; Type permite al consumidor
// decidir el decodificador sin inspeccionar el contenido.
type IntegrationEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TopicForEventType deriva el nombre de topic a partir del tipo de evento:
// se quita el sufijo "Event" y el CamelCase pasa a kebab-case en minúsculas.
// Ej: "OrderCreatedEvent" -> "order-created".
func TopicForEventType(eventType string) string {
	name := strings.TrimSuffix(eventType, "Event")
	name = strings.ReplaceAll(name, "_", "-")

	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 && name[i-1] != '-' {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
