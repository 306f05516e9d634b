package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/senyabanana/tender-lifecycle/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, owner_id, title, description, category, location, budget, timeline, status, admin_status,
	admin_note, current_round, bidding_rounds, selection_deadline, bid_settings, selected_bid, bidding_completed,
	completion_certificate, is_archived, created_at, updated_at`

// PostgresProjectRepository - реализация ProjectRepository для базы данных.
type PostgresProjectRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresProjectRepository создает новый экземпляр PostgresProjectRepository.
func NewPostgresProjectRepository(db *pgxpool.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

// GetProject возвращает проект по ID.
func (r *PostgresProjectRepository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM project WHERE id = $1`
	project, err := scanProject(r.DB.QueryRow(ctx, query, projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// FindProjects возвращает проекты, удовлетворяющие фильтру, в порядке создания.
func (r *PostgresProjectRepository) FindProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	var where whereBuilder
	where.anyOf("id::text", filter.IDs)
	where.anyOf("status", stringsOf(filter.Statuses))
	where.anyOf("admin_status", stringsOf(filter.AdminStatuses))
	if len(filter.Rounds) > 0 {
		rounds := make([]int, len(filter.Rounds))
		for i, round := range filter.Rounds {
			rounds[i] = int(round)
		}
		where.add("current_round = ANY($%d)", rounds)
	}
	if !filter.CreatedBefore.IsZero() {
		where.add("created_at <= $%d", filter.CreatedBefore)
	}
	if !filter.UpdatedBefore.IsZero() {
		where.add("updated_at <= $%d", filter.UpdatedBefore)
	}
	if filter.Archived != nil {
		where.add("is_archived = $%d", *filter.Archived)
	}

	query := `SELECT ` + projectColumns + ` FROM project` + where.String() + ` ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, rows.Err()
}

// CreateProject сохраняет новый проект.
func (r *PostgresProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	args, err := projectArgs(project)
	if err != nil {
		return err
	}
	insertQuery := `INSERT INTO project (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err = r.DB.Exec(ctx, insertQuery, args...)
	return err
}

// UpdateProject сохраняет проект целиком.
func (r *PostgresProjectRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	args, err := projectArgs(project)
	if err != nil {
		return err
	}
	updateQuery := `
		UPDATE project SET owner_id = $2, title = $3, description = $4, category = $5, location = $6, budget = $7,
			timeline = $8, status = $9, admin_status = $10, admin_note = $11, current_round = $12, bidding_rounds = $13,
			selection_deadline = $14, bid_settings = $15, selected_bid = $16, bidding_completed = $17,
			completion_certificate = $18, is_archived = $19, created_at = $20, updated_at = $21
		WHERE id = $1`
	tag, err := r.DB.Exec(ctx, updateQuery, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", project.ID, models.ErrNotFound)
	}
	return nil
}

func projectArgs(p *models.Project) ([]interface{}, error) {
	location, err := json.Marshal(p.Location)
	if err != nil {
		return nil, err
	}
	timeline, err := json.Marshal(p.Timeline)
	if err != nil {
		return nil, err
	}
	rounds, err := json.Marshal(p.Rounds)
	if err != nil {
		return nil, err
	}
	settings, err := json.Marshal(p.BidSettings)
	if err != nil {
		return nil, err
	}
	certificate, err := json.Marshal(p.CompletionCertificate)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		p.ID, p.OwnerID, p.Title, p.Description, p.Category, location, p.Budget, timeline, p.Status, p.AdminStatus,
		p.AdminNote, int(p.Rounds.Current), rounds, p.SelectionDeadline, settings, p.SelectedBid, p.BiddingCompleted,
		certificate, p.IsArchived, p.CreatedAt, p.UpdatedAt,
	}, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	var currentRound int
	var location, timeline, rounds, settings, certificate []byte
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Title,
		&p.Description,
		&p.Category,
		&location,
		&p.Budget,
		&timeline,
		&p.Status,
		&p.AdminStatus,
		&p.AdminNote,
		&currentRound,
		&rounds,
		&p.SelectionDeadline,
		&settings,
		&p.SelectedBid,
		&p.BiddingCompleted,
		&certificate,
		&p.IsArchived,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Rounds = models.NewBiddingRounds()
	for _, field := range []struct {
		data []byte
		dst  interface{}
	}{
		{location, &p.Location},
		{timeline, &p.Timeline},
		{rounds, &p.Rounds},
		{settings, &p.BidSettings},
		{certificate, &p.CompletionCertificate},
	} {
		if err := decodeJSON(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}
	}
	p.Rounds.Current = models.Round(currentRound)
	return &p, nil
}

func decodeJSON(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
