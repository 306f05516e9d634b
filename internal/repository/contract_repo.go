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

const contractColumns = `id, project_id, bid_id, customer_id, seller_id, status, documents, terms, current_rejection,
	rejection_history, approved_by, approved_at, created_at, updated_at`

// contractDocuments - файлы договора, хранящиеся в одном jsonb поле.
type contractDocuments struct {
	CustomerTemplate *models.StoredFile  `json:"customerTemplate,omitempty"`
	SellerTemplate   *models.StoredFile  `json:"sellerTemplate,omitempty"`
	CustomerSigned   models.SignedUpload `json:"customerSignedContract"`
	SellerSigned     models.SignedUpload `json:"sellerSignedContract"`
	Certificates     models.Certificates `json:"certificates"`
}

// PostgresContractRepository - реализация ContractRepository для базы данных.
type PostgresContractRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresContractRepository создает новый экземпляр PostgresContractRepository.
func NewPostgresContractRepository(db *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{DB: db}
}

// GetContract возвращает договор по ID.
func (r *PostgresContractRepository) GetContract(ctx context.Context, contractID string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contract WHERE id = $1`
	contract, err := scanContract(r.DB.QueryRow(ctx, query, contractID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contract %s: %w", contractID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// GetContractByBid возвращает договор по выигравшему предложению.
func (r *PostgresContractRepository) GetContractByBid(ctx context.Context, bidID string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contract WHERE bid_id = $1`
	contract, err := scanContract(r.DB.QueryRow(ctx, query, bidID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contract for bid %s: %w", bidID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// FindContracts возвращает договоры по фильтру.
func (r *PostgresContractRepository) FindContracts(ctx context.Context, filter ContractFilter) ([]models.Contract, error) {
	var where whereBuilder
	if filter.ProjectID != "" {
		where.add("project_id = $%d", filter.ProjectID)
	}
	if filter.BidID != "" {
		where.add("bid_id = $%d", filter.BidID)
	}
	where.anyOf("status", stringsOf(filter.Statuses))

	query := `SELECT ` + contractColumns + ` FROM contract` + where.String() + ` ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *contract)
	}
	return contracts, rows.Err()
}

// CreateContract сохраняет новый договор. Для одного предложения допускается один договор.
func (r *PostgresContractRepository) CreateContract(ctx context.Context, contract *models.Contract) error {
	args, err := contractArgs(contract)
	if err != nil {
		return err
	}
	insertQuery := `INSERT INTO contract (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (bid_id) DO NOTHING`
	tag, err := r.DB.Exec(ctx, insertQuery, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract for bid %s already exists: %w", contract.BidID, models.ErrPreconditionNotMet)
	}
	return nil
}

// UpdateContract сохраняет договор целиком.
func (r *PostgresContractRepository) UpdateContract(ctx context.Context, contract *models.Contract) error {
	args, err := contractArgs(contract)
	if err != nil {
		return err
	}
	updateQuery := `
		UPDATE contract SET project_id = $2, bid_id = $3, customer_id = $4, seller_id = $5, status = $6,
			documents = $7, terms = $8, current_rejection = $9, rejection_history = $10, approved_by = $11,
			approved_at = $12, created_at = $13, updated_at = $14
		WHERE id = $1`
	tag, err := r.DB.Exec(ctx, updateQuery, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract %s: %w", contract.ID, models.ErrNotFound)
	}
	return nil
}

func contractArgs(c *models.Contract) ([]interface{}, error) {
	documents, err := json.Marshal(contractDocuments{
		CustomerTemplate: c.CustomerTemplate,
		SellerTemplate:   c.SellerTemplate,
		CustomerSigned:   c.CustomerSigned,
		SellerSigned:     c.SellerSigned,
		Certificates:     c.Certificates,
	})
	if err != nil {
		return nil, err
	}
	terms, err := json.Marshal(c.Terms)
	if err != nil {
		return nil, err
	}
	rejection, err := json.Marshal(c.CurrentRejection)
	if err != nil {
		return nil, err
	}
	history := c.RejectionHistory
	if history == nil {
		history = []models.Rejection{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		c.ID, c.ProjectID, c.BidID, c.CustomerID, c.SellerID, c.Status, documents, terms, rejection, historyJSON,
		c.ApprovedBy, c.ApprovedAt, c.CreatedAt, c.UpdatedAt,
	}, nil
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	var c models.Contract
	var documents, terms, rejection, history []byte
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.BidID,
		&c.CustomerID,
		&c.SellerID,
		&c.Status,
		&documents,
		&terms,
		&rejection,
		&history,
		&c.ApprovedBy,
		&c.ApprovedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	var docs contractDocuments
	if err := decodeJSON(documents, &docs); err != nil {
		return nil, fmt.Errorf("contract %s documents: %w", c.ID, err)
	}
	c.CustomerTemplate = docs.CustomerTemplate
	c.SellerTemplate = docs.SellerTemplate
	c.CustomerSigned = docs.CustomerSigned
	c.SellerSigned = docs.SellerSigned
	c.Certificates = docs.Certificates
	if err := decodeJSON(terms, &c.Terms); err != nil {
		return nil, fmt.Errorf("contract %s terms: %w", c.ID, err)
	}
	if err := decodeJSON(rejection, &c.CurrentRejection); err != nil {
		return nil, fmt.Errorf("contract %s rejection: %w", c.ID, err)
	}
	if err := decodeJSON(history, &c.RejectionHistory); err != nil {
		return nil, fmt.Errorf("contract %s history: %w", c.ID, err)
	}
	return &c, nil
}
