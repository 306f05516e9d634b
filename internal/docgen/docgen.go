// Package docgen запрашивает шаблоны договоров и сертификаты у сервиса документов.
package docgen

import (
	"context"
	"fmt"

	"github.com/senyabanana/tender-lifecycle/internal/models"
)

// Kind - вид документа. Набор закрыт, параметры каждого вида описаны в таблице kinds.
type Kind int

const (
	CustomerTemplate Kind = iota + 1
	SellerTemplate
	CustomerCertificate
	SellerCertificate
	CombinedCertificate
	ProjectCertificate
)

// Role - роль документа в терминах сервиса документов.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleSeller      Role = "seller"
	RoleCertificate Role = "certificate"
)

type kindInfo struct {
	slug  string
	role  Role
	party models.Party
	title string
}

var kinds = map[Kind]kindInfo{
	CustomerTemplate:    {slug: "customer-template", role: RoleCustomer, party: models.PartyCustomer, title: "Contract (customer copy)"},
	SellerTemplate:      {slug: "seller-template", role: RoleSeller, party: models.PartySeller, title: "Contract (seller copy)"},
	CustomerCertificate: {slug: "customer-certificate", role: RoleCertificate, party: models.PartyCustomer, title: "Completion certificate (customer)"},
	SellerCertificate:   {slug: "seller-certificate", role: RoleCertificate, party: models.PartySeller, title: "Completion certificate (seller)"},
	CombinedCertificate: {slug: "combined-certificate", role: RoleCertificate, party: models.PartyBoth, title: "Completion certificate"},
	ProjectCertificate:  {slug: "project-certificate", role: RoleCertificate, party: models.PartyBoth, title: "Project completion certificate"},
}

func (k Kind) info() (kindInfo, error) {
	info, ok := kinds[k]
	if !ok {
		return kindInfo{}, fmt.Errorf("docgen: unknown document kind %d", int(k))
	}
	return info, nil
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.slug
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Role возвращает роль документа.
func (k Kind) Role() Role {
	return kinds[k].role
}

// Request - данные, из которых сервис собирает документ.
type Request struct {
	Kind       Kind
	Bid        models.Bid
	Project    models.Project
	CustomerID string
	SellerID   string
}

// Generator создает документ и возвращает описание сохраненного файла.
// Повторный вызов с тем же запросом допустим.
type Generator interface {
	Generate(ctx context.Context, req Request) (*models.StoredFile, error)
}
