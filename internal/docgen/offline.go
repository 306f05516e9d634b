package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/tender-lifecycle/internal/models"

	"github.com/google/uuid"
)

var documentNamespace = uuid.MustParse("8f5d3c1e-2b8a-4e59-9d0c-6a1f7e4b2c90")

// Offline формирует описание документа без обращения к сервису.
// Идентификатор детерминирован по виду документа и предложению.
type Offline struct {
	BaseURL string
}

// NewOffline создает генератор для локального запуска.
func NewOffline(baseURL string) *Offline {
	return &Offline{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Generate возвращает описание документа вида req.Kind.
func (o *Offline) Generate(_ context.Context, req Request) (*models.StoredFile, error) {
	info, err := req.Kind.info()
	if err != nil {
		return nil, err
	}
	id := uuid.NewSHA1(documentNamespace, []byte(info.slug+"/"+req.Project.ID+"/"+req.Bid.ID))
	summary := fmt.Sprintf("%s\nproject: %s\ncustomer: %s\nseller: %s\namount: %.2f\n",
		info.title, req.Project.Title, req.CustomerID, req.SellerID, req.Bid.Amount)
	return &models.StoredFile{
		ID:       id.String(),
		URL:      fmt.Sprintf("%s/%s/%s.pdf", o.BaseURL, info.slug, id),
		ByteSize: int64(len(summary)),
	}, nil
}
