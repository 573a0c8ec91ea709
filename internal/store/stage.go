package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/treesync/internal/model"
)

// ElementStageRepository persists staged elements.
type ElementStageRepository struct {
	db *sqlx.DB
}

// NewElementStageRepository creates a staged element repository over db.
func NewElementStageRepository(db *sqlx.DB) *ElementStageRepository {
	return &ElementStageRepository{db: db}
}

type stageRow struct {
	ID          string        `db:"id"`
	Entity      []byte        `db:"entity"`
	PublishTime sql.NullInt64 `db:"publish_time"`
	Action      string        `db:"action"`
	Conflicted  bool          `db:"conflicted"`
	Dependents  string        `db:"dependents"`
}

func (r stageRow) toElement() (model.StageEntity[model.Element], error) {
	var e model.Element
	if err := decodeCBOR(r.Entity, &e); err != nil {
		return model.StageEntity[model.Element]{}, err
	}
	deps, err := decodeIDs(r.Dependents)
	if err != nil {
		return model.StageEntity[model.Element]{}, err
	}
	return model.StageEntity[model.Element]{
		Entity:             e,
		PublishTime:        timeFromNull(r.PublishTime),
		Action:             model.Action(r.Action),
		Conflicted:         r.Conflicted,
		ConflictDependents: deps,
	}, nil
}

// ListIDs returns the ids of every staged element ordered by id.
func (r *ElementStageRepository) ListIDs(ctx context.Context, scope model.Scope) ([]model.ID, error) {
	return r.listIDs(ctx, scope, false)
}

// ListConflictedIDs returns the ids of conflicted staged elements ordered by id.
func (r *ElementStageRepository) ListConflictedIDs(ctx context.Context, scope model.Scope) ([]model.ID, error) {
	return r.listIDs(ctx, scope, true)
}

func (r *ElementStageRepository) listIDs(ctx context.Context, scope model.Scope, conflictedOnly bool) ([]model.ID, error) {
	query := `
		SELECT element_id FROM stage_elements
		WHERE space = ? AND item_id = ? AND version_id = ?`
	if conflictedOnly {
		query += " AND conflicted = 1"
	}
	query += " ORDER BY element_id COLLATE BINARY ASC"

	var raw []string
	if err := r.db.SelectContext(ctx, &raw, query, scope.Space, scope.ItemID, scope.VersionID); err != nil {
		return nil, fmt.Errorf("list staged elements: %w", err)
	}
	ids := make([]model.ID, len(raw))
	for i, id := range raw {
		ids[i] = model.ID(id)
	}
	return ids, nil
}

// Get returns the staged element id.
func (r *ElementStageRepository) Get(ctx context.Context, scope model.Scope, id model.ID) (model.StageEntity[model.Element], bool, error) {
	var row stageRow
	err := r.db.GetContext(ctx, &row, `
		SELECT element_id AS id, entity, publish_time, action, conflicted, dependents
		FROM stage_elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StageEntity[model.Element]{}, false, nil
	}
	if err != nil {
		return model.StageEntity[model.Element]{}, false, fmt.Errorf("get staged element %s: %w", id, err)
	}
	staged, err := row.toElement()
	if err != nil {
		return model.StageEntity[model.Element]{}, false, fmt.Errorf("get staged element %s: %w", id, err)
	}
	return staged, true, nil
}

// GetDescriptor is Get with the entity's data blobs dropped.
func (r *ElementStageRepository) GetDescriptor(ctx context.Context, scope model.Scope, id model.ID) (model.StageEntity[model.Element], bool, error) {
	staged, found, err := r.Get(ctx, scope, id)
	if err != nil || !found {
		return staged, found, err
	}
	staged.Entity = staged.Entity.Descriptor()
	return staged, true, nil
}

// Create stages an element, replacing an existing entry for the same id.
func (r *ElementStageRepository) Create(ctx context.Context, scope model.Scope, staged model.StageEntity[model.Element]) error {
	entity, err := encodeCBOR(staged.Entity)
	if err != nil {
		return fmt.Errorf("stage element %s: %w", staged.Entity.ID, err)
	}
	deps, err := encodeIDs(staged.ConflictDependents)
	if err != nil {
		return fmt.Errorf("stage element %s: %w", staged.Entity.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stage_elements
		(space, item_id, version_id, element_id, entity, publish_time, action, conflicted, dependents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id, element_id) DO UPDATE SET
			entity = excluded.entity,
			publish_time = excluded.publish_time,
			action = excluded.action,
			conflicted = excluded.conflicted,
			dependents = excluded.dependents
	`, scope.Space, scope.ItemID, scope.VersionID, staged.Entity.ID, entity,
		nullTime(staged.PublishTime), string(staged.Action), staged.Conflicted, deps)
	if err != nil {
		return fmt.Errorf("stage element %s: %w", staged.Entity.ID, err)
	}
	return nil
}

// MarkAsNotConflicted clears the conflict flag of a staged element and,
// when action is non-nil, replaces its action.
func (r *ElementStageRepository) MarkAsNotConflicted(ctx context.Context, scope model.Scope, id model.ID, action *model.Action) error {
	var err error
	if action == nil {
		_, err = r.db.ExecContext(ctx, `
			UPDATE stage_elements SET conflicted = 0
			WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ?
		`, scope.Space, scope.ItemID, scope.VersionID, id)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE stage_elements SET conflicted = 0, action = ?
			WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ?
		`, string(*action), scope.Space, scope.ItemID, scope.VersionID, id)
	}
	if err != nil {
		return fmt.Errorf("resolve staged element %s: %w", id, err)
	}
	return nil
}

// Delete removes the staged element id.
func (r *ElementStageRepository) Delete(ctx context.Context, scope model.Scope, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM stage_elements
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id)
	if err != nil {
		return fmt.Errorf("unstage element %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every staged element of the version.
func (r *ElementStageRepository) DeleteAll(ctx context.Context, scope model.Scope) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM stage_elements WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return fmt.Errorf("unstage elements: %w", err)
	}
	return nil
}

// VersionStageRepository persists the staged version of each item version.
type VersionStageRepository struct {
	db *sqlx.DB
}

// NewVersionStageRepository creates a staged version repository over db.
func NewVersionStageRepository(db *sqlx.DB) *VersionStageRepository {
	return &VersionStageRepository{db: db}
}

// Get returns the staged version of scope.
func (r *VersionStageRepository) Get(ctx context.Context, scope model.Scope) (model.StageEntity[model.Version], bool, error) {
	var row stageRow
	err := r.db.GetContext(ctx, &row, `
		SELECT version_id AS id, entity, publish_time, action, conflicted
		FROM stage_versions
		WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StageEntity[model.Version]{}, false, nil
	}
	if err != nil {
		return model.StageEntity[model.Version]{}, false, fmt.Errorf("get staged version %s: %w", scope.VersionID, err)
	}
	var v model.Version
	if err := decodeCBOR(row.Entity, &v); err != nil {
		return model.StageEntity[model.Version]{}, false, fmt.Errorf("get staged version %s: %w", scope.VersionID, err)
	}
	return model.StageEntity[model.Version]{
		Entity:      v,
		PublishTime: timeFromNull(row.PublishTime),
		Action:      model.Action(row.Action),
		Conflicted:  row.Conflicted,
	}, true, nil
}

// Create stages the version, replacing an existing entry.
func (r *VersionStageRepository) Create(ctx context.Context, scope model.Scope, staged model.StageEntity[model.Version]) error {
	entity, err := encodeCBOR(staged.Entity)
	if err != nil {
		return fmt.Errorf("stage version %s: %w", scope.VersionID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stage_versions (space, item_id, version_id, entity, publish_time, action, conflicted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id) DO UPDATE SET
			entity = excluded.entity,
			publish_time = excluded.publish_time,
			action = excluded.action,
			conflicted = excluded.conflicted
	`, scope.Space, scope.ItemID, scope.VersionID, entity,
		nullTime(staged.PublishTime), string(staged.Action), staged.Conflicted)
	if err != nil {
		return fmt.Errorf("stage version %s: %w", scope.VersionID, err)
	}
	return nil
}

// Delete removes the staged version.
func (r *VersionStageRepository) Delete(ctx context.Context, scope model.Scope) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM stage_versions WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return fmt.Errorf("unstage version %s: %w", scope.VersionID, err)
	}
	return nil
}
