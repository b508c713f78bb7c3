package mocks

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	sharedPersistence "github.com/davicafu/orderflow/shared/platform/persistence"
)

// InMemoryDocStore simula un DocumentStore serializando a JSON, igual que
// haría el adapter real: así los tests de proyecciones ejercitan también los
// tags de serialización de los read models.
type InMemoryDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

var _ sharedPersistence.DocumentStore = (*InMemoryDocStore)(nil)

func NewInMemoryDocStore() *InMemoryDocStore {
	return &InMemoryDocStore{docs: make(map[string][]byte)}
}

func (s *InMemoryDocStore) Store(ctx context.Context, key string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.docs[key] = data
	return nil
}

func (s *InMemoryDocStore) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// FindByField compara el campo JSON de cada documento con value; dest debe
// ser puntero a slice del tipo de documento.
func (s *InMemoryDocStore) FindByField(ctx context.Context, field string, value interface{}, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slicePtr := reflect.ValueOf(dest)
	sliceVal := slicePtr.Elem()
	elemType := sliceVal.Type().Elem()

	for _, data := range s.docs {
		var generic map[string]interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}

		got, ok := generic[field]
		if !ok || got != value {
			continue
		}

		elem := reflect.New(elemType)
		if err := json.Unmarshal(data, elem.Interface()); err != nil {
			return err
		}
		sliceVal.Set(reflect.Append(sliceVal, elem.Elem()))
	}
	return nil
}

// Len devuelve el número de documentos almacenados.
func (s *InMemoryDocStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
