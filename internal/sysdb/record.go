package sysdb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Record is a stored row of a collection.
type Record struct {
	Seq       int64
	ID        string
	Embedding []float32
	Document  *string
	// Metadata is the JSON encoded metadata, empty when absent.
	Metadata string
}

// EncodeEmbedding packs a vector as little-endian float32.
func EncodeEmbedding(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("sysdb: embedding blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r    Record
		blob []byte
		doc  sql.NullString
		meta sql.NullString
	)
	if err := rows.Scan(&r.Seq, &r.ID, &blob, &doc, &meta); err != nil {
		return Record{}, err
	}
	v, err := DecodeEmbedding(blob)
	if err != nil {
		return Record{}, err
	}
	r.Embedding = v
	if doc.Valid {
		d := doc.String
		r.Document = &d
	}
	r.Metadata = meta.String
	return r, nil
}

// Records returns all records of a collection in insertion order.
func (s *SysDB) Records(ctx context.Context, collectionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, embedding, document, metadata_json FROM embeddings WHERE collection_id = ? ORDER BY seq`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("sysdb: load records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sysdb: load records: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshot returns a collection together with all of its records, read in
// one transaction so that the records match the collection version.
func (s *SysDB) Snapshot(ctx context.Context, collectionID string) (Collection, []Record, error) {
	var (
		c   Collection
		out []Record
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if c, err = getCollectionByID(ctx, tx, collectionID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `SELECT seq, id, embedding, document, metadata_json FROM embeddings WHERE collection_id = ? ORDER BY seq`, collectionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Collection{}, nil, fmt.Errorf("sysdb: snapshot: %w", err)
	}
	return c, out, err
}

// Tx is a write transaction over the records of one collection.
type Tx struct {
	ctx        context.Context
	tx         *sql.Tx
	collection Collection
	changed    bool
}

// Collection returns the collection as read at the start of the transaction.
func (t *Tx) Collection() Collection { return t.collection }

// Lookup returns the stored records among ids.
func (t *Tx) Lookup(ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		chunk := ids[start:min(start+batch, len(ids))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, t.collection.ID)
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := t.tx.QueryContext(t.ctx, `SELECT seq, id, embedding, document, metadata_json FROM embeddings
			WHERE collection_id = ? AND id IN (?`+strings.Repeat(",?", len(chunk)-1)+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[r.ID] = r
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Insert stores a new record and returns it with its sequence number.
func (t *Tx) Insert(r Record) (Record, error) {
	res, err := t.tx.ExecContext(t.ctx, `INSERT INTO embeddings (collection_id, id, embedding, document, metadata_json) VALUES (?, ?, ?, ?, ?)`,
		t.collection.ID, r.ID, EncodeEmbedding(r.Embedding), nullString(r.Document), nullIfEmpty(r.Metadata))
	if isUniqueViolation(err) {
		return Record{}, fmt.Errorf("record %q %w", r.ID, ErrConflict)
	}
	if err != nil {
		return Record{}, err
	}
	if r.Seq, err = res.LastInsertId(); err != nil {
		return Record{}, err
	}
	t.changed = true
	return r, nil
}

// Update overwrites a stored record, keeping its sequence number.
func (t *Tx) Update(r Record) error {
	res, err := t.tx.ExecContext(t.ctx, `UPDATE embeddings SET embedding = ?, document = ?, metadata_json = ? WHERE collection_id = ? AND id = ?`,
		EncodeEmbedding(r.Embedding), nullString(r.Document), nullIfEmpty(r.Metadata), t.collection.ID, r.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %q %w", r.ID, ErrNotFound)
	}
	t.changed = true
	return nil
}

// Delete removes records by id and returns how many existed.
func (t *Tx) Delete(ids []string) (int64, error) {
	var total int64
	for _, id := range ids {
		res, err := t.tx.ExecContext(t.ctx, `DELETE FROM embeddings WHERE collection_id = ? AND id = ?`, t.collection.ID, id)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		t.changed = true
	}
	return total, nil
}

// SetDimension fixes the collection dimension.
func (t *Tx) SetDimension(dim int) error {
	if _, err := t.tx.ExecContext(t.ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, dim, t.collection.ID); err != nil {
		return err
	}
	t.collection.Dimension = dim
	return nil
}

// UpdateRecords runs fn in a transaction over the records of a collection.
// When fn changed anything the collection version is bumped. It returns the
// collection as of the commit.
func (s *SysDB) UpdateRecords(ctx context.Context, collectionID string, fn func(tx *Tx) error) (Collection, error) {
	var out Collection
	err := s.withTx(ctx, func(sqlTx *sql.Tx) error {
		c, err := getCollectionByID(ctx, sqlTx, collectionID)
		if err != nil {
			return err
		}

		t := &Tx{ctx: ctx, tx: sqlTx, collection: c}
		if err := fn(t); err != nil {
			return err
		}

		if t.changed {
			if _, err := sqlTx.ExecContext(ctx, `UPDATE collections SET version = version + 1 WHERE id = ?`, c.ID); err != nil {
				return err
			}
			t.collection.Version++
		}
		out = t.collection
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
		return Collection{}, fmt.Errorf("sysdb: update records: %w", err)
	}
	return out, err
}
