package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close mock db: %v", closeErr)
		}
	})
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCheckHealth_SchemaVersionMismatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("PRAGMA user_version").
		WillReturnRows(sqlmock.NewRows([]string{"user_version"}).AddRow(0))

	err := s.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckHealth_QueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("PRAGMA user_version").WillReturnError(errors.New("disk I/O error"))

	err := s.Versions().CheckHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElements_CreateRollsBackOnParentFailure(t *testing.T) {
	s, mock := newMockStore(t)
	scope := privateScope()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sub_element_ids FROM elements").
		WithArgs(scope.Space, scope.ItemID, scope.VersionID, model.ID("p"), scope.RevisionID).
		WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := s.Elements().Create(context.Background(), scope, testElement("c", "p", "c"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sub-elements of p")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElements_CreateUpdatesParentBeforeChild(t *testing.T) {
	s, mock := newMockStore(t)
	scope := privateScope()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT sub_element_ids FROM elements").
		WithArgs(scope.Space, scope.ItemID, scope.VersionID, model.ID("p"), scope.RevisionID).
		WillReturnRows(sqlmock.NewRows([]string{"sub_element_ids"}).AddRow("[]"))
	mock.ExpectExec("UPDATE elements SET sub_element_ids").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO elements").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := s.Elements().Create(context.Background(), scope, testElement("c", "p", "c"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElements_DeleteWithoutParentSkipsSubElements(t *testing.T) {
	s, mock := newMockStore(t)
	scope := privateScope()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM elements").
		WithArgs(scope.Space, scope.ItemID, scope.VersionID, model.ID("root"), scope.RevisionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Elements().Delete(context.Background(), scope, model.Element{ID: "root"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElementStates_ListError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT element_id AS id").WillReturnError(errors.New("boom"))

	_, err := s.ElementStates().List(context.Background(), privateScope())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list element states")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionStage_CreateError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO stage_versions").WillReturnError(errors.New("readonly database"))

	err := s.VersionStage().Create(context.Background(), privateScope(), model.StageEntity[model.Version]{
		Entity: model.Version{ID: "v1"},
		Action: model.ActionUpdate,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage version v1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
