package db

import (
	"context"
	"fmt"
	"time"

	"hive-monitor/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDatabase   = "hive-monitor"
	mongoCollection = "hive_classifications"
	mongoTimeout    = 10 * time.Second
)

// MongoClient stores classification records in a MongoDB collection, the
// document-store deployment option for shared installations.
type MongoClient struct {
	client *mongo.Client
}

func NewMongoClient(uri string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	return &MongoClient{client: client}, nil
}

func (c *MongoClient) collection() *mongo.Collection {
	return c.client.Database(mongoDatabase).Collection(mongoCollection)
}

func (c *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Save stores a classification record as one document.
func (c *MongoClient) Save(record *models.ClassificationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	if record.ID == 0 {
		record.ID = time.Now().UnixNano()
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	if _, err := c.collection().InsertOne(ctx, record); err != nil {
		return fmt.Errorf("error storing classification: %s", err)
	}

	return nil
}

// List retrieves all classification records, newest first.
func (c *MongoClient) List() ([]models.ClassificationRecord, error) {
	return c.find(bson.M{})
}

// ListByDevice retrieves the records for one device, newest first.
func (c *MongoClient) ListByDevice(deviceID string) ([]models.ClassificationRecord, error) {
	return c.find(bson.M{"device_id": deviceID})
}

func (c *MongoClient) find(filter bson.M) ([]models.ClassificationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "processed_at", Value: -1}})
	cursor, err := c.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying classifications: %s", err)
	}
	defer cursor.Close(ctx)

	var classificationRecords []models.ClassificationRecord
	if err := cursor.All(ctx, &classificationRecords); err != nil {
		return nil, fmt.Errorf("error decoding classifications: %s", err)
	}

	return classificationRecords, nil
}
