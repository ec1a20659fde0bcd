package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

var indexFieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type collection struct {
	conn *sql.Conn
	name string
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	stored := docstore.Clone(doc)
	if stored == nil {
		stored = docstore.Document{}
	}
	id := stored.ID()
	if id == "" {
		id = docstore.NewID()
		stored[docstore.IDField] = id
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	if _, err := c.conn.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3::jsonb)
	`, c.name, id, body); err != nil {
		return "", fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	where, args, err := whereClause(c.name, filter)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = c.conn.QueryRowContext(ctx, `
		SELECT body
		FROM documents
		WHERE `+where+`
		ORDER BY seq
		LIMIT 1
	`, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNoDocuments
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.name, err)
	}
	return decodeDocument(body)
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter) ([]docstore.Document, error) {
	where, args, err := whereClause(c.name, filter)
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx, `
		SELECT body
		FROM documents
		WHERE `+where+`
		ORDER BY seq
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	defer rows.Close()

	result := make([]docstore.Document, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", c.name, err)
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", c.name, err)
	}
	return result, nil
}

func (c *collection) UpsertByID(ctx context.Context, id string, doc docstore.Document) (docstore.UpsertResult, error) {
	if id == "" {
		return docstore.UpsertResult{}, errors.New("postgres: upsert requires an id")
	}

	stored := docstore.Clone(doc)
	if stored == nil {
		stored = docstore.Document{}
	}
	stored[docstore.IDField] = id

	body, err := json.Marshal(stored)
	if err != nil {
		return docstore.UpsertResult{}, fmt.Errorf("encode document: %w", err)
	}

	// xmax = 0 только у строки, вставленной этим запросом.
	var inserted bool
	if err := c.conn.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET body = EXCLUDED.body,
		    updated_at = NOW()
		RETURNING (xmax = 0)
	`, c.name, id, body).Scan(&inserted); err != nil {
		return docstore.UpsertResult{}, fmt.Errorf("upsert into %s: %w", c.name, err)
	}
	return docstore.UpsertResult{ID: id, Inserted: inserted}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	where, args, err := whereClause(c.name, filter)
	if err != nil {
		return 0, err
	}

	res, err := c.conn.ExecContext(ctx, `
		DELETE FROM documents
		WHERE seq = (
			SELECT seq
			FROM documents
			WHERE `+where+`
			ORDER BY seq
			LIMIT 1
		)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete one from %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

func (c *collection) DeleteMany(ctx context.Context, filter docstore.Filter) (int64, error) {
	where, args, err := whereClause(c.name, filter)
	if err != nil {
		return 0, err
	}

	res, err := c.conn.ExecContext(ctx, `
		DELETE FROM documents
		WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

// EnsureIndex создаёт частичный индекс по выражению body->>field для коллекции.
func (c *collection) EnsureIndex(ctx context.Context, field string) error {
	if !indexFieldPattern.MatchString(field) || !indexFieldPattern.MatchString(c.name) {
		return fmt.Errorf("postgres: unsupported index %s.%s", c.name, field)
	}

	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS documents_%s%s_idx ON documents ((body->>'%s')) WHERE collection = '%s'`,
		c.name, field, field, c.name,
	)
	if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index on %s.%s: %w", c.name, field, err)
	}
	return nil
}

// whereClause строит условие выборки по фильтру. Строковые поля дополнительно
// сравниваются через body->>'field', чтобы планировщик мог взять индекс из
// EnsureIndex; _id сравнивается с колонкой id. Containment по всему фильтру
// сохраняет точную семантику совпадения по типам.
func whereClause(name string, filter docstore.Filter) (string, []any, error) {
	cond, err := encodeFilter(filter)
	if err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = $1", "body @> $2::jsonb"}
	args := []any{name, cond}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value, ok := filter[key].(string)
		if !ok {
			continue
		}
		var column string
		switch {
		case key == docstore.IDField:
			column = "id"
		case indexFieldPattern.MatchString(key):
			column = fmt.Sprintf("body->>'%s'", key)
		default:
			continue
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func encodeFilter(filter docstore.Filter) ([]byte, error) {
	if filter == nil {
		filter = docstore.Filter{}
	}
	cond, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return cond, nil
}

func decodeDocument(body []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

var _ docstore.Collection = (*collection)(nil)
