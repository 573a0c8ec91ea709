package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/treesync/internal/model"
)

// VersionRepository persists version rows and public revision element maps.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository creates a version repository over db.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

type versionRow struct {
	VersionID        string `db:"version_id"`
	BaseID           string `db:"base_id"`
	CreationTime     int64  `db:"creation_time"`
	ModificationTime int64  `db:"modification_time"`
}

func (r versionRow) toVersion() model.Version {
	return model.Version{
		ID:               model.ID(r.VersionID),
		BaseID:           model.ID(r.BaseID),
		CreationTime:     fromUnixNano(r.CreationTime),
		ModificationTime: fromUnixNano(r.ModificationTime),
	}
}

// List returns every version of the item in space ordered by id.
func (r *VersionRepository) List(ctx context.Context, space string, itemID model.ID) ([]model.Version, error) {
	var rows []versionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT version_id, base_id, creation_time, modification_time
		FROM versions
		WHERE space = ? AND item_id = ?
		ORDER BY version_id COLLATE BINARY ASC
	`, space, itemID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", itemID, err)
	}
	versions := make([]model.Version, len(rows))
	for i, row := range rows {
		versions[i] = row.toVersion()
	}
	return versions, nil
}

// Get returns the version row of scope.
func (r *VersionRepository) Get(ctx context.Context, scope model.Scope) (model.Version, bool, error) {
	var row versionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT version_id, base_id, creation_time, modification_time
		FROM versions
		WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Version{}, false, nil
	}
	if err != nil {
		return model.Version{}, false, fmt.Errorf("get version %s: %w", scope.VersionID, err)
	}
	return row.toVersion(), true, nil
}

// Create writes the version row, replacing an existing one.
func (r *VersionRepository) Create(ctx context.Context, scope model.Scope, v model.Version) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO versions (space, item_id, version_id, base_id, creation_time, modification_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id) DO UPDATE SET
			base_id = excluded.base_id,
			creation_time = excluded.creation_time,
			modification_time = excluded.modification_time
	`, scope.Space, scope.ItemID, v.ID, v.BaseID, unixNano(v.CreationTime), unixNano(v.ModificationTime))
	if err != nil {
		return fmt.Errorf("create version %s: %w", v.ID, err)
	}
	return nil
}

// Update stores the modification time of the version row.
func (r *VersionRepository) Update(ctx context.Context, scope model.Scope, v model.Version) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE versions SET modification_time = ?
		WHERE space = ? AND item_id = ? AND version_id = ?
	`, unixNano(v.ModificationTime), scope.Space, scope.ItemID, v.ID)
	if err != nil {
		return fmt.Errorf("update version %s: %w", v.ID, err)
	}
	return nil
}

// Delete removes the version row and its revision element maps.
func (r *VersionRepository) Delete(ctx context.Context, scope model.Scope) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM versions WHERE space = ? AND item_id = ? AND version_id = ?
		`, scope.Space, scope.ItemID, scope.VersionID); err != nil {
			return fmt.Errorf("delete version %s: %w", scope.VersionID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM version_elements WHERE space = ? AND item_id = ? AND version_id = ?
		`, scope.Space, scope.ItemID, scope.VersionID); err != nil {
			return fmt.Errorf("delete version elements %s: %w", scope.VersionID, err)
		}
		return nil
	})
}

// CreateVersionElements records the element map of the revision in scope.
func (r *VersionRepository) CreateVersionElements(ctx context.Context, scope model.Scope, elements map[model.ID]model.ID) error {
	encoded, err := encodeIDMap(elements)
	if err != nil {
		return fmt.Errorf("create version elements %s: %w", scope.RevisionID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO version_elements (space, item_id, version_id, revision_id, elements)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id, revision_id) DO UPDATE SET elements = excluded.elements
	`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID, encoded)
	if err != nil {
		return fmt.Errorf("create version elements %s: %w", scope.RevisionID, err)
	}
	return nil
}

// GetVersionElements returns the element map recorded for scope.RevisionID.
func (r *VersionRepository) GetVersionElements(ctx context.Context, scope model.Scope) (map[model.ID]model.ID, bool, error) {
	m, found, err := getVersionElements(ctx, r.db, scope)
	if err != nil {
		return nil, false, fmt.Errorf("get version elements %s: %w", scope.RevisionID, err)
	}
	return m, found, nil
}

// CheckHealth verifies the schema is reachable.
func (r *VersionRepository) CheckHealth(ctx context.Context) error {
	return checkHealth(ctx, r.db)
}

func getVersionElements(ctx context.Context, db *sqlx.DB, scope model.Scope) (map[model.ID]model.ID, bool, error) {
	var raw string
	err := db.GetContext(ctx, &raw, `
		SELECT elements FROM version_elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, err := decodeIDMap(raw)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}
