package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/storage"
)

// NewSQLiteConfig 返回文件型 SQLite 存储配置，数据库文件位于 t.TempDir()
func NewSQLiteConfig(t *testing.T) *storage.Config {
	return &storage.Config{
		Driver:      "sqlite",
		AutoMigrate: true,
		SQLite:      storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "paygate.db")},
	}
}

// NewSQLiteStore 返回已迁移的 SQLite 审计存储，生命周期由 t.Cleanup 管理
func NewSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.New(context.Background(), NewSQLiteConfig(t), storage.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to open sqlite store")
	t.Cleanup(func() { _ = st.Close() })
	return st
}
