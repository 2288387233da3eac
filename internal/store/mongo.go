package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

const (
	patientCollection = "patients"
	recordCollection  = "clinicalrecords"
)

// Mongo wraps the two collections the service owns. Patients are keyed by
// their external patient_id, clinical records by a generated record_id.
type Mongo struct {
	client   *mongo.Client
	patients *mongo.Collection
	records  *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	m := &Mongo{
		client:   client,
		patients: db.Collection(patientCollection),
		records:  db.Collection(recordCollection),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.patients.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "patient_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create patient index: %w", err)
	}

	_, err = m.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "record_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create record indexes: %w", err)
	}
	return nil
}

// UpsertPatient inserts the patient on first sight and refreshes demographics
// and last_seen_at on every visit after that. The document as stored is
// returned, so callers see the original created_at.
func (m *Mongo) UpsertPatient(ctx context.Context, p model.Patient) (*model.Patient, error) {
	filter := bson.M{"patient_id": p.PatientID}
	update := bson.M{
		"$set": bson.M{
			"age":          p.Age,
			"sex":          p.Sex,
			"last_seen_at": p.LastSeenAt,
		},
		"$setOnInsert": bson.M{
			"patient_id": p.PatientID,
			"created_at": p.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.Patient
	if err := m.patients.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, fmt.Errorf("upsert patient %s: %w", p.PatientID, err)
	}
	return &out, nil
}

func (m *Mongo) InsertRecord(ctx context.Context, rec model.ClinicalRecord) error {
	if _, err := m.records.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert clinical record %s: %w", rec.RecordID, err)
	}
	return nil
}

func (m *Mongo) GetPatient(ctx context.Context, patientID string) (*model.Patient, error) {
	var p model.Patient
	err := m.patients.FindOne(ctx, bson.M{"patient_id": patientID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient %s: %w", patientID, err)
	}
	return &p, nil
}

// ListPatients pages through patients, most recently registered first.
func (m *Mongo) ListPatients(ctx context.Context, limit, offset int64) ([]model.Patient, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := m.patients.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	patients := []model.Patient{}
	if err := cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("decode patients: %w", err)
	}
	return patients, nil
}

// ListRecords returns a patient's clinical records, newest first.
func (m *Mongo) ListRecords(ctx context.Context, patientID string, limit int64) ([]model.ClinicalRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.records.Find(ctx, bson.M{"patient_id": patientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list records for patient %s: %w", patientID, err)
	}
	records := []model.ClinicalRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func (m *Mongo) DeleteRecord(ctx context.Context, recordID string) error {
	res, err := m.records.DeleteOne(ctx, bson.M{"record_id": recordID})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", recordID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SourceStats aggregates record counts and mean confidence per result source,
// which makes fallback usage visible without trawling logs.
func (m *Mongo) SourceStats(ctx context.Context) ([]model.SourceStats, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":            "$result.source",
			"count":          bson.M{"$sum": 1},
			"avg_confidence": bson.M{"$avg": "$result.confidence"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := m.records.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate source stats: %w", err)
	}
	stats := []model.SourceStats{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("decode source stats: %w", err)
	}
	return stats, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
