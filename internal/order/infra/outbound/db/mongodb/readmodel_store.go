package mongodb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	sharedPersistence "github.com/davicafu/orderflow/shared/platform/persistence"
)

// ReadModelStoreMongo implementa DocumentStore sobre una colección MongoDB.
// Cada documento se guarda bajo su clave de read model ("orders/<id>/summary")
// con el contenido JSON del documento anidado en "doc": así el esquema de los
// read models evoluciona sin tocar la colección.
type ReadModelStoreMongo struct {
	coll *mongo.Collection
}

var _ sharedPersistence.DocumentStore = (*ReadModelStoreMongo)(nil)

// NewReadModelStoreMongo es el constructor del almacén de read models.
func NewReadModelStoreMongo(ctx context.Context, client *mongo.Client, dbName string) (*ReadModelStoreMongo, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	return &ReadModelStoreMongo{
		coll: client.Database(dbName).Collection("read_models"),
	}, nil
}

// --- Struct de BSON para el mapeo ---
// Se define localmente para no "contaminar" los read models con tags de BSON.

type mongoDocument struct {
	Key string   `bson:"_id"`
	Doc bson.Raw `bson:"doc"`
}

func (s *ReadModelStoreMongo) Store(ctx context.Context, key string, doc interface{}) error {
	// pasar por JSON respeta los tags json de los read models
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", key, err)
	}

	var raw bson.M
	if err := bson.UnmarshalExtJSON(data, true, &raw); err != nil {
		return fmt.Errorf("failed to convert document %s to BSON: %w", key, err)
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"doc": raw}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *ReadModelStoreMongo) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	var md mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&md)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	data, err := bson.MarshalExtJSON(md.Doc, true, false)
	if err != nil {
		return false, fmt.Errorf("failed to convert document %s to JSON: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal document %s: %w", key, err)
	}
	return true, nil
}

// FindByField consulta por igualdad sobre un campo del documento anidado.
// dest debe ser un puntero a slice del tipo de read model.
func (s *ReadModelStoreMongo) FindByField(ctx context.Context, field string, value interface{}, dest interface{}) error {
	cursor, err := s.coll.Find(ctx, bson.M{"doc." + field: value})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var results []json.RawMessage
	for cursor.Next(ctx) {
		var md mongoDocument
		if err := cursor.Decode(&md); err != nil {
			return err
		}
		data, err := bson.MarshalExtJSON(md.Doc, true, false)
		if err != nil {
			return err
		}
		results = append(results, data)
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	// un solo Unmarshal al slice destino vía array JSON
	joined, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return json.Unmarshal(joined, dest)
}
