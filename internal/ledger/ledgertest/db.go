// Package ledgertest 测试用的 sqlite 账本库
package ledgertest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cashup.com/internal/ledger/repo/mysql"
	"cashup.com/pkg/orm"
)

// NewDB 每个测试一个临时文件库，已迁移。
// _txlock=immediate 让写事务在 begin 时就拿写锁，并发测试靠它串行化
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL",
		filepath.Join(t.TempDir(), "ledger.db"))
	db, err := gorm.Open(sqlite.Open(dsn), orm.GormConfig("silent"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(mysql.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func NewRepo(t testing.TB) *mysql.Repo {
	return mysql.New(NewDB(t))
}
