package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capturecabinet/cabinet/internal/models"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAll(db))

	require.True(t, db.Migrator().HasTable(&models.Folder{}))
	require.True(t, db.Migrator().HasTable(&models.Screenshot{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "cabinet",
		Password: "secret",
		Name:     "cabinet",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db.internal")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "sslmode=disable")

	_, err = buildPostgresDSN(Config{Host: "db.internal"})
	require.Error(t, err)

	dsn, err = buildPostgresDSN(Config{DSN: "postgres://elsewhere"})
	require.NoError(t, err)
	require.Equal(t, "postgres://elsewhere", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "cabinet",
		Password: "secret",
		Name:     "cabinet",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "cabinet:secret@tcp(127.0.0.1:3306)/cabinet")
	require.Contains(t, dsn, "parseTime=True")

	_, err = buildMySQLDSN(Config{User: "cabinet"})
	require.Error(t, err)
}
