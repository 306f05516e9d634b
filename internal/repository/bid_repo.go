package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/senyabanana/tender-lifecycle/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bidColumns = `id, project_id, seller_id, customer_id, amount, proposal, round, selection_status, status,
	is_active_in_round, created_at, updated_at`

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

// GetBid возвращает предложение по ID.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE id = $1`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, bidID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", bidID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// FindBids возвращает предложения по фильтру в порядке подачи.
func (r *PostgresBidRepository) FindBids(ctx context.Context, filter BidFilter) ([]models.Bid, error) {
	where := bidWhere(filter)
	query := `SELECT ` + bidColumns + ` FROM bid` + where.String() + ` ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

// CreateBid сохраняет новое предложение. У продавца может быть только одно неотмененное предложение по проекту.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	insertQuery := `INSERT INTO bid (` + bidColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		bid.ID,
		bid.ProjectID,
		bid.SellerID,
		bid.CustomerID,
		bid.Amount,
		bid.Proposal,
		bid.Round,
		bid.SelectionStatus,
		bid.Status,
		bid.IsActiveInRound,
		bid.CreatedAt,
		bid.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("seller %s already has an active bid on project %s: %w", bid.SellerID, bid.ProjectID, models.ErrPreconditionNotMet)
	}
	return err
}

// UpdateBid сохраняет предложение целиком. Тур предложения не уменьшается.
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, bid *models.Bid) error {
	updateQuery := `
		UPDATE bid SET amount = $2, proposal = $3, round = GREATEST(round, $4), selection_status = $5, status = $6,
			is_active_in_round = $7, updated_at = $8
		WHERE id = $1`
	tag, err := r.DB.Exec(ctx, updateQuery, bid.ID, bid.Amount, bid.Proposal, bid.Round, bid.SelectionStatus,
		bid.Status, bid.IsActiveInRound, bid.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid %s: %w", bid.ID, models.ErrNotFound)
	}
	return nil
}

// UpdateBids меняет все предложения, подходящие под фильтр, одним запросом.
func (r *PostgresBidRepository) UpdateBids(ctx context.Context, filter BidFilter, update models.BidUpdate) (int64, error) {
	var updates []string
	var args []interface{}
	argIndex := 1

	if update.Status != "" {
		updates = append(updates, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, update.Status)
		argIndex++
	}
	if update.SelectionStatus != "" {
		updates = append(updates, fmt.Sprintf("selection_status = $%d", argIndex))
		args = append(args, update.SelectionStatus)
		argIndex++
	}
	if update.Round > 0 {
		updates = append(updates, fmt.Sprintf("round = GREATEST(round, $%d)", argIndex))
		args = append(args, update.Round)
		argIndex++
	}
	if update.IsActiveInRound != nil {
		updates = append(updates, fmt.Sprintf("is_active_in_round = $%d", argIndex))
		args = append(args, *update.IsActiveInRound)
		argIndex++
	}
	if !update.UpdatedAt.IsZero() {
		updates = append(updates, fmt.Sprintf("updated_at = $%d", argIndex))
		args = append(args, update.UpdatedAt)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	where := whereBuilder{args: args}
	appendBidFilter(&where, filter)

	query := `UPDATE bid SET ` + strings.Join(updates, ", ") + where.String()
	tag, err := r.DB.Exec(ctx, query, where.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func bidWhere(filter BidFilter) *whereBuilder {
	var where whereBuilder
	appendBidFilter(&where, filter)
	return &where
}

func appendBidFilter(where *whereBuilder, filter BidFilter) {
	if filter.ProjectID != "" {
		where.add("project_id = $%d", filter.ProjectID)
	}
	if filter.SellerID != "" {
		where.add("seller_id = $%d", filter.SellerID)
	}
	where.anyOf("id::text", filter.IDs)
	if len(filter.ExcludeIDs) > 0 {
		where.add("NOT (id::text = ANY($%d))", stringArray(filter.ExcludeIDs))
	}
	if len(filter.Rounds) > 0 {
		where.add("round = ANY($%d)", filter.Rounds)
	}
	where.anyOf("status", stringsOf(filter.Statuses))
	where.anyOf("selection_status", stringsOf(filter.SelectionStatuses))
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID,
		&bid.ProjectID,
		&bid.SellerID,
		&bid.CustomerID,
		&bid.Amount,
		&bid.Proposal,
		&bid.Round,
		&bid.SelectionStatus,
		&bid.Status,
		&bid.IsActiveInRound,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
