package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"visionsync/backend/internal/models"
)

// InsertOne inserts a document, generating a fresh SixID on every attempt so
// the duplicate-key retry in Try gets a new candidate each time.
func InsertOne(ctx context.Context, coll *mongo.Collection, doc models.IBase) (models.IBase, error) {
	op := func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	}
	if err := Try(op); err != nil {
		return nil, err
	}
	return doc, nil
}
