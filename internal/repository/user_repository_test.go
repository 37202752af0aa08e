package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryGetByUUID(t *testing.T) {
	t.Run("missing_user_returns_not_found", func(t *testing.T) {
		// 幽灵 UUID 必须报 ErrRecordNotFound，而不是 (nil, nil)
		gdb, mock, db := newRepoTestDB(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT \* FROM .user_info. WHERE uuid = \?`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		repo := NewUserRepository(gdb, nil)
		user, err := repo.GetByUUID(context.Background(), "ghost")
		assert.Equal(t, ErrRecordNotFound, err)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing_user_returned", func(t *testing.T) {
		gdb, mock, db := newRepoTestDB(t)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM .user_info. WHERE uuid = \?`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "username", "tag", "email", "created_at", "updated_at"}).
				AddRow(1, "u1", "alice", "0042", "a@b.com", now, now))

		repo := NewUserRepository(gdb, nil)
		user, err := repo.GetByUUID(context.Background(), "u1")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "0042", user.Tag)
	})
}
