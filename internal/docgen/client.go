package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
)

// Client обращается к внешнему сервису документов по HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient создает клиента сервиса документов.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type generateRequest struct {
	Role       Role         `json:"role"`
	Party      models.Party `json:"party"`
	Title      string       `json:"title"`
	BidID      string       `json:"bidId"`
	ProjectID  string       `json:"projectId"`
	CustomerID string       `json:"customerId"`
	SellerID   string       `json:"sellerId"`
	Amount     float64      `json:"amount"`
	Project    struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Location    models.Location `json:"location"`
		Timeline    models.Timeline `json:"timeline"`
	} `json:"project"`
}

// Generate запрашивает документ вида req.Kind.
func (c *Client) Generate(ctx context.Context, req Request) (*models.StoredFile, error) {
	info, err := req.Kind.info()
	if err != nil {
		return nil, err
	}
	body := generateRequest{
		Role:       info.role,
		Party:      info.party,
		Title:      info.title,
		BidID:      req.Bid.ID,
		ProjectID:  req.Project.ID,
		CustomerID: req.CustomerID,
		SellerID:   req.SellerID,
		Amount:     req.Bid.Amount,
	}
	body.Project.Title = req.Project.Title
	body.Project.Description = req.Project.Description
	body.Project.Category = req.Project.Category
	body.Project.Location = req.Project.Location
	body.Project.Timeline = req.Project.Timeline

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/documents/"+info.slug, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", info.slug+":"+req.Bid.ID)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("document service returned %d for %s", resp.StatusCode, info.slug)
	}
	var file models.StoredFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, err
	}
	if file.ID == "" || file.URL == "" {
		return nil, fmt.Errorf("document service returned an empty descriptor for %s", info.slug)
	}
	return &file, nil
}
