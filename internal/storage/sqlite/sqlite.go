package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipd/internal/storage"
	"clipd/pkg/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements storage.Store on a single SQLite database. SQLite's
// own transaction discipline serializes concurrent mutations.
type SQLiteStore struct {
	db *gorm.DB
}

// New opens (or creates) the database and migrates the schema.
func New(config storage.Config) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&storage.ClipRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert implements storage.Store. The row's id is assigned by the database
// and written back into the clip.
func (s *SQLiteStore) Insert(ctx context.Context, clip *types.Clip) (int64, error) {
	row := storage.FromClip(clip)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert clip: %w", err)
	}
	clip.ID = row.ID
	return row.ID, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*types.Clip, error) {
	var row storage.ClipRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clip: %w", err)
	}
	return row.ToClip(), nil
}

func (s *SQLiteStore) MostRecent(ctx context.Context) (*types.Clip, error) {
	var row storage.ClipRow
	err := s.db.WithContext(ctx).
		Order("captured_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get most recent clip: %w", err)
	}
	return row.ToClip(), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&storage.ClipRow{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete clip: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&storage.ClipRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete clips: %w", err)
	}
	return nil
}

// DeleteOldestUnpinned implements the bulk eviction primitive: the n oldest
// non-pinned rows go, oldest capture first, insertion order breaking ties.
func (s *SQLiteStore) DeleteOldestUnpinned(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	victims := s.db.Model(&storage.ClipRow{}).
		Select("id").
		Where("pinned = ?", false).
		Order("captured_at ASC, id ASC").
		Limit(n)
	if err := s.db.WithContext(ctx).Where("id IN (?)", victims).Delete(&storage.ClipRow{}).Error; err != nil {
		return fmt.Errorf("failed to evict clips: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUnpinnedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("pinned = ? AND captured_at < ?", false, cutoff.UnixMilli()).
		Delete(&storage.ClipRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear old clips: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *SQLiteStore) SetPinned(ctx context.Context, id int64, pinned bool) error {
	result := s.db.WithContext(ctx).
		Model(&storage.ClipRow{}).
		Where("id = ?", id).
		Update("pinned", pinned)
	if result.Error != nil {
		return fmt.Errorf("failed to update pinned flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&storage.ClipRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clips: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CountUnpinned(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&storage.ClipRow{}).
		Where("pinned = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unpinned clips: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ImageRefs(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.db.WithContext(ctx).
		Model(&storage.ClipRow{}).
		Where("kind = ? AND image_ref <> ''", string(types.KindImage)).
		Pluck("image_ref", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list image refs: %w", err)
	}
	return refs, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}
