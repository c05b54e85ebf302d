package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRows = []string{
	"id", "email", "password_hash", "full_name", "phone", "role",
	"status", "created_at", "updated_at",
}

func TestCreateUser(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewUserRepository(sqlx.NewDb(mockDB, "sqlmock"))

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(
				sqlmock.AnyArg(), "pilot@example.com", "hashed", "Alex Pilot",
				"+15550100", "provider", "active", sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := repo.CreateUser("pilot@example.com", "hashed", "Alex Pilot", "+15550100", "provider")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "pilot@example.com", user.Email)
		assert.Equal(t, "provider", user.Role)
		assert.Equal(t, "active", user.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))

		user, err := repo.CreateUser("pilot@example.com", "hashed", "Alex Pilot", "+15550100", "provider")
		assert.Error(t, err)
		assert.Nil(t, user)
		assert.Contains(t, err.Error(), "failed to create user")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByEmail(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewUserRepository(sqlx.NewDb(mockDB, "sqlmock"))

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("pilot@example.com").
			WillReturnRows(sqlmock.NewRows(userRows).AddRow(
				userID, "pilot@example.com", "hashed", "Alex Pilot", "+15550100",
				"provider", "active", now, now,
			))

		user, err := repo.GetUserByEmail("pilot@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "Alex Pilot", user.FullName)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
			WithArgs("missing@example.com").
			WillReturnRows(sqlmock.NewRows(userRows))

		user, err := repo.GetUserByEmail("missing@example.com")
		require.NoError(t, err)
		assert.Nil(t, user)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateProfile(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewUserRepository(sqlx.NewDb(mockDB, "sqlmock"))

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		mock.ExpectExec(`UPDATE users`).
			WithArgs(userID, "New Name", "+15550199").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateProfile(userID, "New Name", "+15550199")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing user", func(t *testing.T) {
		userID := uuid.New()
		mock.ExpectExec(`UPDATE users`).
			WithArgs(userID, "New Name", "+15550199").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateProfile(userID, "New Name", "+15550199")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
