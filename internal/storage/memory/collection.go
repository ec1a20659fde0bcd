package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

// collection хранит документы в порядке вставки, что и считается «порядком хранилища».
type collection struct {
	name  string
	store *Store

	mu      sync.RWMutex
	docs    map[string]docstore.Document
	order   []string
	indexes map[string]struct{}
}

func newCollection(name string, store *Store) *collection {
	return &collection{
		name:    name,
		store:   store,
		docs:    make(map[string]docstore.Document),
		indexes: make(map[string]struct{}),
	}
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	if err := c.check(ctx, "insert"); err != nil {
		return "", err
	}

	stored := docstore.Clone(doc)
	if stored == nil {
		stored = docstore.Document{}
	}
	id := stored.ID()
	if id == "" {
		id = docstore.NewID()
		stored[docstore.IDField] = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("memory: duplicate key %q in collection %s", id, c.name)
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := c.check(ctx, "find"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		doc := c.docs[id]
		if docstore.Matches(doc, filter) {
			return docstore.Clone(doc), nil
		}
	}
	return nil, docstore.ErrNoDocuments
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter) ([]docstore.Document, error) {
	if err := c.check(ctx, "find"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]docstore.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if docstore.Matches(doc, filter) {
			result = append(result, docstore.Clone(doc))
		}
	}
	return result, nil
}

func (c *collection) UpsertByID(ctx context.Context, id string, doc docstore.Document) (docstore.UpsertResult, error) {
	if err := c.check(ctx, "upsert"); err != nil {
		return docstore.UpsertResult{}, err
	}
	if id == "" {
		return docstore.UpsertResult{}, fmt.Errorf("memory: upsert requires an id")
	}

	stored := docstore.Clone(doc)
	if stored == nil {
		stored = docstore.Document{}
	}
	stored[docstore.IDField] = id

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.docs[id]
	c.docs[id] = stored
	if !exists {
		c.order = append(c.order, id)
	}
	return docstore.UpsertResult{ID: id, Inserted: !exists}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	return c.delete(ctx, filter, 1)
}

func (c *collection) DeleteMany(ctx context.Context, filter docstore.Filter) (int64, error) {
	return c.delete(ctx, filter, -1)
}

func (c *collection) delete(ctx context.Context, filter docstore.Filter, limit int) (int64, error) {
	if err := c.check(ctx, "delete"); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var deleted int64
	kept := c.order[:0]
	for _, id := range c.order {
		if (limit < 0 || deleted < int64(limit)) && docstore.Matches(c.docs[id], filter) {
			delete(c.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return deleted, nil
}

func (c *collection) EnsureIndex(ctx context.Context, field string) error {
	if err := c.check(ctx, "index"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[field] = struct{}{}
	return nil
}

// HasIndex сообщает, создавался ли индекс по полю.
func (s *Store) HasIndex(collectionName, field string) bool {
	c := s.collection(collectionName)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.indexes[field]
	return ok
}

func (c *collection) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.store.injected(c.name, op)
}

var _ docstore.Collection = (*collection)(nil)
