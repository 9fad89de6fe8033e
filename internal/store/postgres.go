package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);`

// PostgresStore keeps every collection in one JSONB table
type PostgresStore struct {
	db *sqlx.DB
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// NewPostgresStore connects to the database and creates the documents table
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *PostgresStore) GetDB() *sqlx.DB {
	return s.db
}

// List retrieves every document in a collection
func (s *PostgresStore) List(ctx context.Context, collection string) ([]models.Document, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, data FROM documents WHERE collection = $1 ORDER BY id", collection)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// Get retrieves a document by id
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, data FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(row)
}

// Add inserts a document under a generated id
func (s *PostgresStore) Add(ctx context.Context, collection string, fields models.Document) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or replaces a document
func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields models.Document) error {
	return s.withTx(ctx, func(tx *sqlx.Tx, now time.Time) error {
		return setTx(ctx, tx, now, collection, id, fields)
	})
}

// Update merges top-level fields into an existing document
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields models.Document) error {
	return s.withTx(ctx, func(tx *sqlx.Tx, now time.Time) error {
		return updateTx(ctx, tx, now, collection, id, fields)
	})
}

// Delete removes a document; deleting a missing document is not an error
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	return err
}

// Query runs equality filters with optional ordering and limit.
// Ordering compares the text form of the field, which is why timestamps
// are stored in a fixed-width layout.
func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]models.Document, error) {
	var (
		sb   strings.Builder
		args = []interface{}{collection}
	)
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		cond, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter on %s: %w", f.Field, err)
		}
		args = append(args, string(cond))
		fmt.Fprintf(&sb, " AND data @> $%d::jsonb", len(args))
	}

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY data->>$%d %s, id", len(args), dir)
	} else {
		sb.WriteString(" ORDER BY id")
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// Commit applies the batch in one transaction
func (s *PostgresStore) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx, now time.Time) error {
		for _, op := range batch.ops {
			var err error
			switch op.kind {
			case opSet:
				err = setTx(ctx, tx, now, op.collection, op.id, op.fields)
			case opUpdate:
				err = updateTx(ctx, tx, now, op.collection, op.id, op.fields)
			case opDelete:
				_, err = tx.ExecContext(ctx,
					"DELETE FROM documents WHERE collection = $1 AND id = $2", op.collection, op.id)
			}
			if err != nil {
				return fmt.Errorf("batch %s/%s: %w", op.collection, op.id, err)
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, handing it the database clock
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx, now time.Time) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var now time.Time
	if err := tx.GetContext(ctx, &now, "SELECT NOW()"); err != nil {
		return fmt.Errorf("failed to read server time: %w", err)
	}

	if err := fn(tx, now); err != nil {
		return err
	}
	return tx.Commit()
}

func setTx(ctx context.Context, tx *sqlx.Tx, now time.Time, collection, id string, fields models.Document) error {
	data, err := encodeFields(fields, now)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, string(data))
	return err
}

func updateTx(ctx context.Context, tx *sqlx.Tx, now time.Time, collection, id string, fields models.Document) error {
	data, err := encodeFields(fields, now)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2",
		collection, id, string(data))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeFields(fields models.Document, now time.Time) ([]byte, error) {
	doc := fields.Without("id")
	doc.ResolveTimestamps(now)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func decodeRow(row documentRow) (models.Document, error) {
	doc := models.Document{}
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", row.ID, err)
	}
	doc["id"] = row.ID
	return doc, nil
}

func decodeRows(rows []documentRow) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
