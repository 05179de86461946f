package review

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jackzampolin/itihasa/internal/types"
)

// Row kinds stored in the review collection.
const (
	kindQuestion = "question"
	kindSummary  = "summary"
)

// MongoConfig configures a MongoSurface.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoSurface stores one document per staged row. Reviewers flip the
// status field from a database UI or the review commands.
type MongoSurface struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Document is a staged row as stored in the collection.
type Document struct {
	ID        string                `bson:"_id"`
	RowID     string                `bson:"row_id"`
	Kind      string                `bson:"kind"`
	EpicID    string                `bson:"epic_id"`
	Book      string                `bson:"kanda"`
	Sarga     int                   `bson:"sarga"`
	Status    Status                `bson:"status"`
	Question  *types.QuestionRecord `bson:"question,omitempty"`
	Summary   *types.ChapterSummary `bson:"summary,omitempty"`
	CreatedAt time.Time             `bson:"created_at"`
	UpdatedAt time.Time             `bson:"updated_at"`
}

// documentID is unique per chapter and row so re-staging is a duplicate key.
func documentID(key types.ChapterKey, rowID string) string {
	return fmt.Sprintf("%s/%s/%d/%s", key.EpicID, key.Book, key.Sarga, rowID)
}

func chapterFilter(key types.ChapterKey, kind string) bson.M {
	return bson.M{"epic_id": key.EpicID, "kanda": key.Book, "sarga": key.Sarga, "kind": kind}
}

// NewQuestionDocument builds the pending document of a question.
func NewQuestionDocument(key types.ChapterKey, q *types.QuestionRecord, now time.Time) Document {
	rowID := RowID(q)
	rec := *q
	return Document{
		ID:        documentID(key, rowID),
		RowID:     rowID,
		Kind:      kindQuestion,
		EpicID:    key.EpicID,
		Book:      key.Book,
		Sarga:     key.Sarga,
		Status:    StatusPending,
		Question:  &rec,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSummaryDocument builds the pending document of a summary.
func NewSummaryDocument(s *types.ChapterSummary, now time.Time) Document {
	key := s.Key()
	sum := *s
	return Document{
		ID:        documentID(key, SummaryRowID),
		RowID:     SummaryRowID,
		Kind:      kindSummary,
		EpicID:    key.EpicID,
		Book:      key.Book,
		Sarga:     key.Sarga,
		Status:    StatusPending,
		Summary:   &sum,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMongoSurface connects and pings the server.
func NewMongoSurface(ctx context.Context, cfg MongoConfig) (*MongoSurface, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo review surface requires a URI")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "epic_id", Value: 1}, {Key: "kanda", Value: 1}, {Key: "sarga", Value: 1}, {Key: "kind", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create review index: %w", err)
	}
	return &MongoSurface{client: client, collection: coll}, nil
}

// Location names the collection holding the rows.
func (s *MongoSurface) Location(key types.ChapterKey) string {
	return fmt.Sprintf("mongo:%s.%s", s.collection.Database().Name(), s.collection.Name())
}

func (s *MongoSurface) AppendQuestions(ctx context.Context, key types.ChapterKey, qs []types.QuestionRecord) (int, error) {
	if len(qs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	docs := make([]any, len(qs))
	for i := range qs {
		docs[i] = NewQuestionDocument(key, &qs[i], now)
	}

	res, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil && !onlyDuplicates(err) {
		return inserted, fmt.Errorf("failed to stage questions: %w", err)
	}
	return inserted, nil
}

const duplicateKeyCode = 11000

// onlyDuplicates reports whether every write error of a bulk insert was a
// duplicate key, meaning those rows were staged before.
func onlyDuplicates(err error) bool {
	bwe, ok := err.(mongo.BulkWriteException)
	if !ok {
		return mongo.IsDuplicateKeyError(err)
	}
	if bwe.WriteConcernError != nil {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func (s *MongoSurface) AppendSummary(ctx context.Context, sum *types.ChapterSummary) (bool, error) {
	_, err := s.collection.InsertOne(ctx, NewSummaryDocument(sum, time.Now().UTC()))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stage summary: %w", err)
	}
	return true, nil
}

func (s *MongoSurface) ApprovedQuestions(ctx context.Context, key types.ChapterKey) ([]types.QuestionRecord, error) {
	filter := chapterFilter(key, kindQuestion)
	filter["status"] = StatusApproved

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query approved questions: %w", err)
	}
	var docs []Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode approved questions: %w", err)
	}

	out := make([]types.QuestionRecord, 0, len(docs))
	for _, d := range docs {
		if d.Question != nil {
			out = append(out, *d.Question)
		}
	}
	return out, nil
}

func (s *MongoSurface) ApprovedSummary(ctx context.Context, key types.ChapterKey) (*types.ChapterSummary, error) {
	filter := chapterFilter(key, kindSummary)
	filter["status"] = StatusApproved

	var doc Document
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query approved summary: %w", err)
	}
	return doc.Summary, nil
}

func (s *MongoSurface) SetStatus(ctx context.Context, key types.ChapterKey, rowID string, status Status) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": documentID(key, rowID)},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	return nil
}

func (s *MongoSurface) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Surface = (*MongoSurface)(nil)
