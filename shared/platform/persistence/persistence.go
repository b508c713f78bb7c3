package persistence

import "context"

// DocumentStore es el contrato mínimo de un almacén de documentos para los
// read models: acceso por clave y consulta por igualdad de campo.
// Las proyecciones solo necesitan esto; la implementación concreta
// (MongoDB, memoria) vive en los adapters.
type DocumentStore interface {
	// Store guarda o reemplaza el documento bajo la clave dada.
	Store(ctx context.Context, key string, doc interface{}) error

	// Load rellena dest (puntero) con el documento de la clave.
	// Devuelve (false, nil) si no existe.
	Load(ctx context.Context, key string, dest interface{}) (bool, error)

	// FindByField rellena dest (puntero a slice) con los documentos cuyo
	// campo coincide con value.
	FindByField(ctx context.Context, field string, value interface{}, dest interface{}) error
}
