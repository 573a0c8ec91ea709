package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/treesync/internal/model"
)

type syncStateRow struct {
	ID          string        `db:"id"`
	RevisionID  string        `db:"revision_id"`
	PublishTime sql.NullInt64 `db:"publish_time"`
	Dirty       bool          `db:"dirty"`
	Message     string        `db:"message"`
	User        string        `db:"user"`
}

func (r syncStateRow) toState() model.SyncState {
	return model.SyncState{
		ID:          model.ID(r.ID),
		RevisionID:  model.ID(r.RevisionID),
		PublishTime: timeFromNull(r.PublishTime),
		Dirty:       r.Dirty,
		Message:     r.Message,
		User:        r.User,
	}
}

// ElementSyncStateRepository persists per-element synchronization states.
type ElementSyncStateRepository struct {
	db *sqlx.DB
}

// NewElementSyncStateRepository creates an element state repository over db.
func NewElementSyncStateRepository(db *sqlx.DB) *ElementSyncStateRepository {
	return &ElementSyncStateRepository{db: db}
}

// Create writes the state row of st.ID at scope.RevisionID, replacing any
// existing row.
func (r *ElementSyncStateRepository) Create(ctx context.Context, scope model.Scope, st model.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO element_sync_states
		(space, item_id, version_id, element_id, revision_id, publish_time, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id, element_id, revision_id) DO UPDATE SET
			publish_time = excluded.publish_time,
			dirty = excluded.dirty
	`, scope.Space, scope.ItemID, scope.VersionID, st.ID, scope.RevisionID, nullTime(st.PublishTime), st.Dirty)
	if err != nil {
		return fmt.Errorf("create element state %s: %w", st.ID, err)
	}
	return nil
}

// Update is Create under a name that reads better at call sites that
// overwrite an existing row.
func (r *ElementSyncStateRepository) Update(ctx context.Context, scope model.Scope, st model.SyncState) error {
	return r.Create(ctx, scope, st)
}

// MarkAsDirty sets the dirty flag of an existing row.
func (r *ElementSyncStateRepository) MarkAsDirty(ctx context.Context, scope model.Scope, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE element_sync_states SET dirty = 1
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id, scope.RevisionID)
	if err != nil {
		return fmt.Errorf("mark element state %s dirty: %w", id, err)
	}
	return nil
}

// Delete removes the state row of id at scope.RevisionID.
func (r *ElementSyncStateRepository) Delete(ctx context.Context, scope model.Scope, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM element_sync_states
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id, scope.RevisionID)
	if err != nil {
		return fmt.Errorf("delete element state %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every element state row of the version, all revisions.
func (r *ElementSyncStateRepository) DeleteAll(ctx context.Context, scope model.Scope) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM element_sync_states WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return fmt.Errorf("delete element states: %w", err)
	}
	return nil
}

// Get returns the state row of id at scope.RevisionID.
func (r *ElementSyncStateRepository) Get(ctx context.Context, scope model.Scope, id model.ID) (model.SyncState, bool, error) {
	var row syncStateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT element_id AS id, revision_id, publish_time, dirty
		FROM element_sync_states
		WHERE space = ? AND item_id = ? AND version_id = ? AND element_id = ? AND revision_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID, id, scope.RevisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, false, nil
	}
	if err != nil {
		return model.SyncState{}, false, fmt.Errorf("get element state %s: %w", id, err)
	}
	return row.toState(), true, nil
}

// List returns every state row at scope.RevisionID ordered by element id.
func (r *ElementSyncStateRepository) List(ctx context.Context, scope model.Scope) ([]model.SyncState, error) {
	var rows []syncStateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT element_id AS id, revision_id, publish_time, dirty
		FROM element_sync_states
		WHERE space = ? AND item_id = ? AND version_id = ? AND revision_id = ?
		ORDER BY element_id COLLATE BINARY ASC
	`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID)
	if err != nil {
		return nil, fmt.Errorf("list element states: %w", err)
	}
	states := make([]model.SyncState, len(rows))
	for i, row := range rows {
		states[i] = row.toState()
	}
	return states, nil
}

// VersionSyncStateRepository persists version synchronization states. In the
// public space every row is one revision.
type VersionSyncStateRepository struct {
	db *sqlx.DB
}

// NewVersionSyncStateRepository creates a version state repository over db.
func NewVersionSyncStateRepository(db *sqlx.DB) *VersionSyncStateRepository {
	return &VersionSyncStateRepository{db: db}
}

// Create writes the state row at scope.RevisionID, replacing any existing row.
func (r *VersionSyncStateRepository) Create(ctx context.Context, scope model.Scope, st model.SyncState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO version_sync_states
		(space, item_id, version_id, revision_id, publish_time, dirty, message, user)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, item_id, version_id, revision_id) DO UPDATE SET
			publish_time = excluded.publish_time,
			dirty = excluded.dirty,
			message = excluded.message,
			user = excluded.user
	`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID,
		nullTime(st.PublishTime), st.Dirty, st.Message, st.User)
	if err != nil {
		return fmt.Errorf("create version state %s: %w", scope.VersionID, err)
	}
	return nil
}

// UpdatePublishTime stamps the row at scope.RevisionID with a publish time
// and dirty flag.
func (r *VersionSyncStateRepository) UpdatePublishTime(ctx context.Context, scope model.Scope, publishTime time.Time, dirty bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE version_sync_states SET publish_time = ?, dirty = ?
		WHERE space = ? AND item_id = ? AND version_id = ? AND revision_id = ?
	`, unixNano(publishTime), dirty, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID)
	if err != nil {
		return fmt.Errorf("update version publish time %s: %w", scope.VersionID, err)
	}
	return nil
}

// Delete removes every state row of the version.
func (r *VersionSyncStateRepository) Delete(ctx context.Context, scope model.Scope) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM version_sync_states WHERE space = ? AND item_id = ? AND version_id = ?
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return fmt.Errorf("delete version states %s: %w", scope.VersionID, err)
	}
	return nil
}

// Get returns the row at scope.RevisionID, or the newest row by publish time
// when the revision id is empty.
func (r *VersionSyncStateRepository) Get(ctx context.Context, scope model.Scope) (model.SyncState, bool, error) {
	var row syncStateRow
	var err error
	if scope.RevisionID.IsEmpty() {
		err = r.db.GetContext(ctx, &row, `
			SELECT version_id AS id, revision_id, publish_time, dirty, message, user
			FROM version_sync_states
			WHERE space = ? AND item_id = ? AND version_id = ?
			ORDER BY publish_time DESC, revision_id COLLATE BINARY DESC
			LIMIT 1
		`, scope.Space, scope.ItemID, scope.VersionID)
	} else {
		err = r.db.GetContext(ctx, &row, `
			SELECT version_id AS id, revision_id, publish_time, dirty, message, user
			FROM version_sync_states
			WHERE space = ? AND item_id = ? AND version_id = ? AND revision_id = ?
		`, scope.Space, scope.ItemID, scope.VersionID, scope.RevisionID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, false, nil
	}
	if err != nil {
		return model.SyncState{}, false, fmt.Errorf("get version state %s: %w", scope.VersionID, err)
	}
	return row.toState(), true, nil
}

// List returns every row of the version, newest publish time first.
func (r *VersionSyncStateRepository) List(ctx context.Context, scope model.Scope) ([]model.SyncState, error) {
	var rows []syncStateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT version_id AS id, revision_id, publish_time, dirty, message, user
		FROM version_sync_states
		WHERE space = ? AND item_id = ? AND version_id = ?
		ORDER BY publish_time DESC, revision_id COLLATE BINARY DESC
	`, scope.Space, scope.ItemID, scope.VersionID)
	if err != nil {
		return nil, fmt.Errorf("list version states %s: %w", scope.VersionID, err)
	}
	states := make([]model.SyncState, len(rows))
	for i, row := range rows {
		states[i] = row.toState()
	}
	return states, nil
}
