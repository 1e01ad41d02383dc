package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"riad/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	seed(t, db)

	s := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		snapshot, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer snapshot.Close()

		rooms, err := snapshot.GetRooms(context.Background())
		require.NoError(t, err)
		assert.Len(t, rooms, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "riad_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "keep.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups(time.Now())

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})
}
