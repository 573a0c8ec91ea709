package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/treesync/internal/model"
)

// ElementRepository persists element rows of every space.
type ElementRepository struct {
	db *sqlx.DB
}

// NewElementRepository creates an element repository over db.
func NewElementRepository(db *sqlx.DB) *ElementRepository {
	return &ElementRepository{db: db}
}

type elementRow struct {
	ElementID         string         `db:"element_id"`
	RevisionID        string         `db:"revision_id"`
	ParentID          string         `db:"parent_id"`
	Namespace         sql.NullString `db:"namespace"`
	Info              []byte         `db:"info"`
	Relations         []byte         `db:"relations"`
	Data              []byte         `db:"data"`
	VisualizationData []byte         `db:"visualization_data"`
	SubElementIDs     string         `db:"sub_element_ids"`
	Hash              string         `db:"hash"`
}

const elementColumns = `
	e.element_id, e.revision_id, e.parent_id, n.namespace, e.info, e.relations,
	e.data, e.visualization_data, e.sub_element_ids, e.hash`

const descriptorColumns = `
	e.element_id, e.revision_id, e.parent_id, n.namespace, e.info, e.relations,
	e.sub_element_ids, e.hash`

const elementFrom = `
	FROM elements e
	LEFT JOIN element_namespaces n ON n.item_id = e.item_id AND n.element_id = e.element_id
	WHERE e.space = ? AND e.item_id = ? AND e.version_id = ? AND e.element_id = ?`

func (r elementRow) toElement() (model.Element, error) {
	e := model.Element{
		ID:                model.ID(r.ElementID),
		ParentID:          model.ID(r.ParentID),
		Namespace:         r.Namespace.String,
		Data:              r.Data,
		VisualizationData: r.VisualizationData,
		Hash:              r.Hash,
	}
	if err := decodeCBOR(r.Info, &e.Info); err != nil {
		return model.Element{}, err
	}
	if err := decodeCBOR(r.Relations, &e.Relations); err != nil {
		return model.Element{}, err
	}
	subs, err := decodeIDs(r.SubElementIDs)
	if err != nil {
		return model.Element{}, err
	}
	e.SubElementIDs = subs
	return e, nil
}

// ListIDs returns the ids of the rows stored under scope.RevisionID, each
// mapped to that revision id. Ordering is irrelevant for a map; callers sort.
func (r *ElementRepository) ListIDs(ctx context.Context, scope model.Scope) (map[model.ID]model.ID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT element_id FROM elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND revision_id = ?
		ORDER BY element_id COLLATE BINARY ASC
	`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID)
	if err != nil {
		return nil, fmt.Errorf("list element ids: %w", err)
	}
	out := make(map[model.ID]model.ID, len(ids))
	for _, id := range ids {
		out[model.ID(id)] = scope.RevisionID
	}
	return out, nil
}

// Get returns the element row visible at scope.RevisionID.
//
// With a revision id the exact row is returned, falling back to the row named
// by that revision's element map. With an empty revision id the most
// recently written row wins.
func (r *ElementRepository) Get(ctx context.Context, scope model.Scope, id model.ID) (model.Element, bool, error) {
	return r.get(ctx, scope, id, elementColumns)
}

// GetDescriptor is Get without the data and visualization blobs.
func (r *ElementRepository) GetDescriptor(ctx context.Context, scope model.Scope, id model.ID) (model.Element, bool, error) {
	return r.get(ctx, scope, id, descriptorColumns)
}

func (r *ElementRepository) get(ctx context.Context, scope model.Scope, id model.ID, columns string) (model.Element, bool, error) {
	args := []any{scope.Space, scope.ItemID, scope.VersionID, id}

	var query string
	if scope.RevisionID.IsEmpty() {
		query = "SELECT " + columns + elementFrom + " ORDER BY e.seq DESC LIMIT 1"
	} else {
		query = "SELECT " + columns + elementFrom + " AND e.revision_id = ?"
		args = append(args, scope.RevisionID)
	}

	var row elementRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if scope.RevisionID.IsEmpty() {
			return model.Element{}, false, nil
		}
		return r.getViaRevisionMap(ctx, scope, id, columns)
	}
	if err != nil {
		return model.Element{}, false, fmt.Errorf("get element %s: %w", id, err)
	}

	e, err := row.toElement()
	if err != nil {
		return model.Element{}, false, fmt.Errorf("get element %s: %w", id, err)
	}
	return e, true, nil
}

func (r *ElementRepository) getViaRevisionMap(ctx context.Context, scope model.Scope, id model.ID, columns string) (model.Element, bool, error) {
	elements, found, err := getVersionElements(ctx, r.db, scope)
	if err != nil {
		return model.Element{}, false, fmt.Errorf("get element %s: %w", id, err)
	}
	if !found {
		return model.Element{}, false, nil
	}
	rev, ok := elements[id]
	if !ok || rev == scope.RevisionID {
		return model.Element{}, false, nil
	}

	var row elementRow
	err = r.db.GetContext(ctx, &row, "SELECT "+columns+elementFrom+" AND e.revision_id = ?",
		scope.Space, scope.ItemID, scope.VersionID, id, rev)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Element{}, false, nil
	}
	if err != nil {
		return model.Element{}, false, fmt.Errorf("get element %s at %s: %w", id, rev, err)
	}
	e, err := row.toElement()
	if err != nil {
		return model.Element{}, false, fmt.Errorf("get element %s: %w", id, err)
	}
	return e, true, nil
}

// GetHash returns the stored content hash of the exact row.
func (r *ElementRepository) GetHash(ctx context.Context, scope model.Scope, id model.ID) (string, bool, error) {
	var hash string
	err := r.db.GetContext(ctx, &hash, `
		SELECT hash FROM elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id, scope.RevisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get element hash %s: %w", id, err)
	}
	return hash, true, nil
}

// Create adds e's id to the parent's sub-element set, then writes e under
// scope (replacing an existing row of the same revision). The parent is only
// touched when its row exists in the same revision.
func (r *ElementRepository) Create(ctx context.Context, scope model.Scope, e model.Element) error {
	info, err := encodeCBOR(e.Info)
	if err != nil {
		return fmt.Errorf("create element %s: %w", e.ID, err)
	}
	relations, err := encodeCBOR(e.Relations)
	if err != nil {
		return fmt.Errorf("create element %s: %w", e.ID, err)
	}
	subs, err := encodeIDs(e.SubElementIDs)
	if err != nil {
		return fmt.Errorf("create element %s: %w", e.ID, err)
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if !e.ParentID.IsEmpty() {
			if err := updateSubElements(ctx, tx, scope, e.ParentID, func(p *model.Element) { p.AddSubElement(e.ID) }); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO elements
			(space, item_id, version_id, element_id, revision_id, parent_id,
			 info, relations, data, visualization_data, sub_element_ids, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(space, item_id, version_id, element_id, revision_id) DO UPDATE SET
				parent_id = excluded.parent_id,
				info = excluded.info,
				relations = excluded.relations,
				data = excluded.data,
				visualization_data = excluded.visualization_data,
				sub_element_ids = excluded.sub_element_ids,
				hash = excluded.hash
		`,
			scope.Space, scope.ItemID, scope.VersionID, e.ID, scope.RevisionID, e.ParentID,
			info, relations, e.Data, e.VisualizationData, subs, e.Hash,
		)
		if err != nil {
			return fmt.Errorf("create element %s: %w", e.ID, err)
		}
		return nil
	})
}

// Update overwrites the payload and hash of the exact row. The parent link
// and sub-element set are left untouched.
func (r *ElementRepository) Update(ctx context.Context, scope model.Scope, e model.Element) error {
	info, err := encodeCBOR(e.Info)
	if err != nil {
		return fmt.Errorf("update element %s: %w", e.ID, err)
	}
	relations, err := encodeCBOR(e.Relations)
	if err != nil {
		return fmt.Errorf("update element %s: %w", e.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE elements
		SET info = ?, relations = ?, data = ?, visualization_data = ?, hash = ?
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`,
		info, relations, e.Data, e.VisualizationData, e.Hash,
		scope.Space, scope.ItemID, scope.VersionID, e.ID, scope.RevisionID,
	)
	if err != nil {
		return fmt.Errorf("update element %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes the exact row and drops the id from the parent's
// sub-element set when e carries a parent link.
func (r *ElementRepository) Delete(ctx context.Context, scope model.Scope, e model.Element) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM elements
			WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
		`, scope.Space, scope.ItemID, scope.VersionID, e.ID, scope.RevisionID)
		if err != nil {
			return fmt.Errorf("delete element %s: %w", e.ID, err)
		}
		if e.ParentID.IsEmpty() {
			return nil
		}
		return updateSubElements(ctx, tx, scope, e.ParentID, func(p *model.Element) { p.RemoveSubElement(e.ID) })
	})
}

// CleanAllRevisions removes every element row of the version in scope.Space.
func (r *ElementRepository) CleanAllRevisions(ctx context.Context, scope model.Scope) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM elements WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return fmt.Errorf("clean elements: %w", err)
	}
	return nil
}

// CreateNamespace records the namespace of an element. Namespaces are
// item-wide and shared by every space and version.
func (r *ElementRepository) CreateNamespace(ctx context.Context, scope model.Scope, id model.ID, namespace string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO element_namespaces (item_id, element_id, namespace)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id, element_id) DO UPDATE SET namespace = excluded.namespace
	`, scope.ItemID, id, namespace)
	if err != nil {
		return fmt.Errorf("create namespace %s: %w", id, err)
	}
	return nil
}

// updateSubElements rewrites the sub-element set of the parent row in the
// same revision. A missing parent row is not an error.
func updateSubElements(ctx context.Context, tx *sqlx.Tx, scope model.Scope, parentID model.ID, modify func(*model.Element)) error {
	var raw string
	err := tx.GetContext(ctx, &raw, `
		SELECT sub_element_ids FROM elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, parentID, scope.RevisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sub-elements of %s: %w", parentID, err)
	}

	subs, err := decodeIDs(raw)
	if err != nil {
		return err
	}
	parent := model.Element{ID: parentID, SubElementIDs: subs}
	modify(&parent)

	encoded, err := encodeIDs(parent.SubElementIDs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE elements SET sub_element_ids = ?
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, encoded, scope.Space, scope.ItemID, scope.VersionID, parentID, scope.RevisionID)
	if err != nil {
		return fmt.Errorf("write sub-elements of %s: %w", parentID, err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
