package repository

import (
	"context"
	"strconv"

	"github.com/senyabanana/tender-lifecycle/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNoticeRepository - реализация NoticeRepository для базы данных.
type PostgresNoticeRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresNoticeRepository создает новый экземпляр PostgresNoticeRepository.
func NewPostgresNoticeRepository(db *pgxpool.Pool) *PostgresNoticeRepository {
	return &PostgresNoticeRepository{DB: db}
}

// CreateNotice сохраняет уведомление.
func (r *PostgresNoticeRepository) CreateNotice(ctx context.Context, notice *models.Notice) error {
	insertQuery := `INSERT INTO notice (id, event, title, body, audience, severity, target_user_id, active_from, active_until, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		notice.ID,
		notice.Event,
		notice.Title,
		notice.Body,
		notice.Audience,
		notice.Severity,
		notice.TargetUserID,
		notice.ActiveFrom,
		notice.ActiveUntil,
		notice.CreatedAt)
	return err
}

// ListNotices возвращает последние уведомления по фильтру.
func (r *PostgresNoticeRepository) ListNotices(ctx context.Context, filter NoticeFilter) ([]models.Notice, error) {
	var where whereBuilder
	if filter.TargetUserID != "" {
		where.add("target_user_id = $%d", filter.TargetUserID)
	}
	if filter.Audience != "" {
		where.add("audience = $%d", filter.Audience)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	where.args = append(where.args, limit)
	query := `SELECT id, event, title, body, audience, severity, target_user_id, active_from, active_until, created_at
		FROM notice` + where.String() + ` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(where.args))

	rows, err := r.DB.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(
			&n.ID,
			&n.Event,
			&n.Title,
			&n.Body,
			&n.Audience,
			&n.Severity,
			&n.TargetUserID,
			&n.ActiveFrom,
			&n.ActiveUntil,
			&n.CreatedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}
