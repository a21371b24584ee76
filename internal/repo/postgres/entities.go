package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

type EntityStore struct {
	db DB
}

const (
	insertEntityQuery = `INSERT INTO entities (entity_id, name, iri, entity_type, synonyms, xrefs)
	 VALUES ($1,$2,$3,$4,$5,$6)
	 ON CONFLICT (entity_id) DO UPDATE
	 SET name = EXCLUDED.name,
	     iri = EXCLUDED.iri,
	     entity_type = EXCLUDED.entity_type,
	     synonyms = EXCLUDED.synonyms,
	     xrefs = EXCLUDED.xrefs`

	listEntitiesQuery = `SELECT entity_id, name, iri, entity_type, synonyms, xrefs
	 FROM entities
	 ORDER BY entity_id ASC`
)

func NewEntityStore(db DB) *EntityStore {
	if db == nil {
		return nil
	}
	return &EntityStore{db: db}
}

func (s *EntityStore) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("entity store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, listEntitiesQuery)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		var entity domain.Entity
		var iri sql.NullString
		var entityType string
		var synonyms, xrefs []byte
		if err := rows.Scan(&entity.ID, &entity.Name, &iri, &entityType, &synonyms, &xrefs); err != nil {
			return nil, err
		}
		entity.IRI = iri.String
		entity.Type = domain.EntityType(entityType)
		if entity.Synonyms, err = decodeStrings(synonyms); err != nil {
			return nil, fmt.Errorf("decode synonyms: %w", err)
		}
		if entity.Xrefs, err = decodeStrings(xrefs); err != nil {
			return nil, fmt.Errorf("decode xrefs: %w", err)
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

// InsertEntities upserts ontology records. The ontology ingestion job
// owns this table; the pipeline only reads it.
func (s *EntityStore) InsertEntities(ctx context.Context, entities []domain.Entity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("entity store not initialized")
	}
	for _, entity := range entities {
		synonyms, err := encodeStrings(entity.Synonyms)
		if err != nil {
			return fmt.Errorf("encode synonyms: %w", err)
		}
		xrefs, err := encodeStrings(entity.Xrefs)
		if err != nil {
			return fmt.Errorf("encode xrefs: %w", err)
		}
		_, err = s.db.ExecContext(
			ctx,
			insertEntityQuery,
			strings.TrimSpace(entity.ID),
			entity.Name,
			nullIfEmpty(entity.IRI),
			string(entity.Type),
			synonyms,
			xrefs,
		)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return nil
}
