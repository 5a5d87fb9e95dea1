package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/models"
)

func TestLocationRepositoryListBySchool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLocationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM locations WHERE school_id = $1 ORDER BY name ASC")).
		WithArgs("school-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "name", "capacity"}).AddRow("loc-1", "school-1", "Honbu Dojo", 30))

	locations, err := repo.List(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, locations, 1)
	require.Equal(t, 30, locations[0].Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLocationRepository(db)

	mock.ExpectExec("UPDATE locations SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Location{ID: "loc-x", Name: "Annex", Capacity: 5})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstructorRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstructorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM instructors WHERE id = $1")).
		WithArgs("ins-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "name", "email", "available"}).AddRow("ins-1", "school-1", "Sato", "sato@example.com", true))

	instructor, err := repo.FindByID(context.Background(), nil, "ins-1")
	require.NoError(t, err)
	require.Equal(t, "sato@example.com", instructor.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM instructor_availability WHERE id = $1")).
		WithArgs("av-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), "av-1"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
