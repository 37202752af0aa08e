package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"TagChat/model"
	"TagChat/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newRepoTestDB 基于 sqlmock 构建 gorm 连接，正则模式匹配 SQL。
func newRepoTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	logger.ReplaceGlobal(zap.NewNop())

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock, db
}

func relationRows(rel model.UserRelation) *sqlmock.Rows {
	var deletedAt interface{}
	if rel.DeletedAt.Valid {
		deletedAt = rel.DeletedAt.Time
	}
	return sqlmock.NewRows([]string{"id", "user_uuid", "peer_uuid", "status", "created_at", "updated_at", "deleted_at"}).
		AddRow(rel.Id, rel.UserUuid, rel.PeerUuid, rel.Status, rel.CreatedAt, rel.UpdatedAt, deletedAt)
}

const selectRelationPair = `SELECT \* FROM .user_relation. WHERE user_uuid = \? AND peer_uuid = \?`

func TestRelationRepositoryCreatePending(t *testing.T) {
	t.Run("no_existing_row_inserts", func(t *testing.T) {
		gdb, mock, db := newRepoTestDB(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(selectRelationPair).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`INSERT INTO .user_relation.`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		repo := NewRelationRepository(gdb, nil)
		require.NoError(t, repo.CreatePending(context.Background(), "u1", "u2"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("live_row_reports_duplicate", func(t *testing.T) {
		gdb, mock, db := newRepoTestDB(t)
		defer db.Close()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery(selectRelationPair).
			WillReturnRows(relationRows(model.UserRelation{
				Id: 7, UserUuid: "u1", PeerUuid: "u2",
				Status: model.RelationStatusPending, CreatedAt: now, UpdatedAt: now,
			}))
		mock.ExpectRollback()

		repo := NewRelationRepository(gdb, nil)
		err := repo.CreatePending(context.Background(), "u1", "u2")
		assert.Equal(t, ErrDuplicateKey, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("soft_deleted_row_is_revived", func(t *testing.T) {
		// 拒绝/删好友后的软删除行仍占用唯一索引，重新申请必须走 UPDATE 复活而不是 INSERT
		gdb, mock, db := newRepoTestDB(t)
		defer db.Close()

		old := time.Now().Add(-time.Hour)
		mock.ExpectBegin()
		mock.ExpectQuery(selectRelationPair).
			WillReturnRows(relationRows(model.UserRelation{
				Id: 7, UserUuid: "u1", PeerUuid: "u2",
				Status: model.RelationStatusPending, CreatedAt: old, UpdatedAt: old,
				DeletedAt: gorm.DeletedAt{Time: old, Valid: true},
			}))
		mock.ExpectExec(`UPDATE .user_relation. SET .*.deleted_at.=\?.* WHERE id = \?`).
			WithArgs(sqlmock.AnyArg(), nil, model.RelationStatusPending, sqlmock.AnyArg(), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		repo := NewRelationRepository(gdb, nil)
		require.NoError(t, repo.CreatePending(context.Background(), "u1", "u2"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
