// Package mongostore implements session.Store backed by MongoDB, for
// deployments that want session metadata to survive an inspector restart
// independently of the trace files themselves. Grounded on the teacher's
// features/session/mongo/store.go and its clients/mongo/client.go (upsert
// documents, session_id unique index, withTimeout-wrapped driver calls),
// adapted from goa-ai's Session/RunMeta pair down to this package's single
// session.Meta document.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mcp-agent-inspector/inspector/session"
)

const (
	defaultCollection = "inspector_sessions"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements session.Store against a MongoDB collection.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New builds a Store, creating the unique session_id index used to keep
// Create idempotent under concurrent or retried calls.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idx := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

type document struct {
	SessionID string         `bson:"session_id"`
	Status    string         `bson:"status"`
	Engine    string         `bson:"engine"`
	Title     string         `bson:"title,omitempty"`
	Tags      []string       `bson:"tags,omitempty"`
	Phase     string         `bson:"phase,omitempty"`
	StartedAt time.Time      `bson:"started_at"`
	EndedAt   *time.Time     `bson:"ended_at,omitempty"`
}

func (d document) toMeta() session.Meta {
	return session.Meta{
		ID:        d.SessionID,
		Status:    session.Status(d.Status),
		Engine:    session.Engine(d.Engine),
		Title:     d.Title,
		Tags:      append([]string(nil), d.Tags...),
		Phase:     d.Phase,
		StartedAt: d.StartedAt.UTC(),
		EndedAt:   d.EndedAt,
	}
}

func fromMeta(m session.Meta) document {
	return document{
		SessionID: m.ID,
		Status:    string(m.Status),
		Engine:    string(m.Engine),
		Title:     m.Title,
		Tags:      m.Tags,
		Phase:     m.Phase,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
	}
}

// Create implements session.Store. A session-id collision returns the
// existing document unchanged, matching the in-memory store's idempotent
// Create semantics.
func (s *Store) Create(ctx context.Context, id string, engine session.Engine, title string, startedAt time.Time) (session.Meta, error) {
	if existing, err := s.Load(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return session.Meta{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"session_id": id}
	update := bson.M{
		"$setOnInsert": bson.M{
			"session_id": id,
			"status":     string(session.StatusRunning),
			"engine":     string(engine),
			"title":      title,
			"started_at": startedAt.UTC(),
		},
	}
	if _, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return session.Meta{}, err
	}
	return s.Load(ctx, id)
}

// Update implements session.Store by loading, applying mutate, then
// replacing the stored document. MongoDB's driver has no direct analogue of
// an in-process struct mutation closure, so Update is read-modify-write
// rather than a field-level $set, mirroring the teacher's own per-field
// update construction in spirit if not in mechanism.
func (s *Store) Update(ctx context.Context, id string, mutate func(*session.Meta)) (session.Meta, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return session.Meta{}, err
	}
	mutate(&current)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := fromMeta(current)
	filter := bson.M{"session_id": id}
	update := bson.M{"$set": bson.M{
		"status":     doc.Status,
		"engine":     doc.Engine,
		"title":      doc.Title,
		"tags":       doc.Tags,
		"phase":      doc.Phase,
		"started_at": doc.StartedAt,
		"ended_at":   doc.EndedAt,
	}}
	if _, err := s.coll.UpdateOne(ctx, filter, update); err != nil {
		return session.Meta{}, err
	}
	return current, nil
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, id string) (session.Meta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return session.Meta{}, session.ErrNotFound
		}
		return session.Meta{}, err
	}
	return doc.toMeta(), nil
}

// List implements session.Store.
func (s *Store) List(ctx context.Context) ([]session.Meta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []session.Meta
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMeta())
	}
	return out, cur.Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
