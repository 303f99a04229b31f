package sqlite

import (
	"context"
	"fmt"
	"strings"

	"clipd/internal/storage"
	"clipd/pkg/types"
)

// List implements storage.Store. Substring search is made explicitly
// case-insensitive with LOWER() on both sides instead of leaning on SQLite's
// ASCII-only LIKE folding; folding beyond what SQLite's lower() handles is
// not attempted.
func (s *SQLiteStore) List(ctx context.Context, filter storage.ListFilter) ([]*types.Clip, error) {
	query := s.db.WithContext(ctx).Model(&storage.ClipRow{})

	if filter.Query != "" {
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where(
			"LOWER(preview) LIKE ? OR LOWER(full_text) LIKE ? OR LOWER(link_ref) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.PinnedOnly {
		query = query.Where("pinned = ?", true)
	}

	query = query.Order("captured_at DESC, id DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []storage.ClipRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}

	clips := make([]*types.Clip, len(rows))
	for i := range rows {
		clips[i] = rows[i].ToClip()
	}
	return clips, nil
}
