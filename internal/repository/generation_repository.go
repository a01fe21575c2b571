package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/magicpixa/internal/models"
)

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Log(ctx context.Context, entry models.GenerationLog) error {
	const query = `
INSERT INTO generation_logs (user_uid, feature, cost, archive_url)
VALUES (?, ?, ?, NULLIF(?, ''))`
	if _, err := r.db.ExecContext(ctx, query, entry.UserUID, entry.Feature, entry.Cost, entry.ArchiveURL); err != nil {
		return fmt.Errorf("insert generation log: %w", err)
	}
	return nil
}

// ListForUser returns the newest creations first.
func (r *GenerationRepository) ListForUser(ctx context.Context, uid string, limit int) ([]models.GenerationLog, error) {
	const query = `
SELECT id, user_uid, feature, cost, COALESCE(archive_url, ''), created_at
FROM generation_logs WHERE user_uid = ?
ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var logs []models.GenerationLog
	for rows.Next() {
		var l models.GenerationLog
		if err := rows.Scan(&l.ID, &l.UserUID, &l.Feature, &l.Cost, &l.ArchiveURL, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
