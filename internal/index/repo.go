package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/siphon/internal/apperr"
	"github.com/starford/siphon/internal/collection"
	"github.com/starford/siphon/internal/models"
)

// UpsertPoems inserts or replaces poems in a single transaction.
func (db *DB) UpsertPoems(poems []models.Poem) error {
	if len(poems) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT INTO poems (path, checksum, published, collections, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			published   = excluded.published,
			collections = excluded.collections,
			updated_at  = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("index: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range poems {
		cols := p.Collections
		if cols == nil {
			cols = []string{}
		}
		colsJSON, _ := json.Marshal(cols)
		if _, err := stmt.Exec(p.Path, p.Checksum, p.Published, string(colsJSON), p.UpdatedAt); err != nil {
			return fmt.Errorf("index: upsert poem %s: %w", p.Path, err)
		}
	}
	return tx.Commit()
}

// DeletePoem removes a poem from the catalog.
func (db *DB) DeletePoem(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM poems WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete poem: %w", err)
	}
	return nil
}

// GetPoem returns the cataloged poem at path or apperr.ErrNotFound.
func (db *DB) GetPoem(path string) (*models.Poem, error) {
	var (
		p        models.Poem
		colsJSON string
	)
	err := db.conn.QueryRow(`
		SELECT path, checksum, published, collections, updated_at
		FROM poems WHERE path = ?
	`, path).Scan(&p.Path, &p.Checksum, &p.Published, &colsJSON, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get poem: %w", err)
	}
	if err := json.Unmarshal([]byte(colsJSON), &p.Collections); err != nil {
		return nil, fmt.Errorf("index: decode collections for %s: %w", path, err)
	}
	return &p, nil
}

// AllChecksums returns path → checksum for every cataloged poem.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM poems`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ReplaceMemberships stores idx as the result of the latest build.
func (db *DB) ReplaceMemberships(idx *collection.Index) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM memberships`); err != nil {
		return fmt.Errorf("index: clear memberships: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO memberships (collection, ordinal, position, document) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare membership insert: %w", err)
	}
	defer stmt.Close()

	for ordinal, name := range idx.Names() {
		for pos, doc := range idx.Members(name) {
			if _, err := stmt.Exec(name, ordinal, pos, doc); err != nil {
				return fmt.Errorf("index: insert membership: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Collections rebuilds the index stored by the latest build.
func (db *DB) Collections() (*collection.Index, error) {
	rows, err := db.conn.Query(`SELECT collection, document FROM memberships ORDER BY ordinal, position`)
	if err != nil {
		return nil, fmt.Errorf("index: collections: %w", err)
	}
	defer rows.Close()

	idx := collection.NewIndex()
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, err
		}
		collection.Aggregate(doc, []string{name}, idx)
	}
	return idx, rows.Err()
}

// CollectionsOf returns the collections document was last built into.
func (db *DB) CollectionsOf(document string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT collection, MIN(ordinal) AS first_ordinal
		FROM memberships
		WHERE document = ?
		GROUP BY collection
		ORDER BY first_ordinal
	`, document)
	if err != nil {
		return nil, fmt.Errorf("index: collections of: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			s     string
			first int
		)
		if err := rows.Scan(&s, &first); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
