package models

import "time"

type (
	ContractStatus string // Статус договора
	Party          string // Сторона договора
)

const (
	PendingCustomerContract ContractStatus = "pending-customer" // Ждет подписи заказчика
	PendingSellerContract   ContractStatus = "pending-seller"   // Ждет подписи исполнителя
	PendingAdminContract    ContractStatus = "pending-admin"    // Ждет проверки администратором
	CorrectingContract      ContractStatus = "correcting"       // Возвращен на исправление
	CompletedContract       ContractStatus = "completed"        // Утвержден
	RejectedContract        ContractStatus = "rejected"         // Отклонен окончательно
	CancelledContract       ContractStatus = "cancelled"        // Отменен

	PartyCustomer Party = "customer"
	PartySeller   Party = "seller"
	PartyBoth     Party = "both"
	PartyNone     Party = "none"
)

// Terminal сообщает, что договор больше не меняет статус.
func (s ContractStatus) Terminal() bool {
	return s == CompletedContract || s == RejectedContract || s == CancelledContract
}

// Valid проверяет, что сторона из допустимого набора.
func (p Party) Valid() bool {
	switch p {
	case PartyCustomer, PartySeller, PartyBoth, PartyNone:
		return true
	default:
		return false
	}
}

// Requires сообщает, должна ли сторона party повторно загрузить документ.
func (p Party) Requires(party Party) bool {
	return p == PartyBoth || p == party
}

// StoredFile - описание сохраненного файла.
type StoredFile struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ByteSize int64  `json:"byteSize"`
}

// SignedUpload - слот для подписанного стороной экземпляра договора.
type SignedUpload struct {
	Party      Party       `json:"party"`
	File       *StoredFile `json:"file,omitempty"`
	UploadedAt *time.Time  `json:"uploadedAt,omitempty"`
}

// Present сообщает, что сторона загрузила подписанный договор.
func (u SignedUpload) Present() bool {
	return u.File != nil && u.File.ID != ""
}

// Rejection - замечание администратора к договору.
type Rejection struct {
	ID            string     `json:"id"`
	Reason        string     `json:"reason"`
	PartyRequired Party      `json:"partyRequired"`
	Deadline      time.Time  `json:"deadline"`
	RejectedBy    string     `json:"rejectedBy,omitempty"`
	RejectedAt    time.Time  `json:"rejectedAt"`
	Resolved      bool       `json:"resolved"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	Expired       bool       `json:"expired"`
}

// ContractTerms - снимок условий проекта и предложения на момент создания договора.
type ContractTerms struct {
	ProjectTitle       string    `json:"projectTitle"`
	ProjectDescription string    `json:"projectDescription"`
	Category           string    `json:"category"`
	Location           Location  `json:"location"`
	Timeline           Timeline  `json:"timeline"`
	Amount             float64   `json:"amount"`
	Proposal           string    `json:"proposal,omitempty"`
	CapturedAt         time.Time `json:"capturedAt"`
}

// Certificates - сертификаты о завершении, выдаваемые при утверждении договора.
type Certificates struct {
	Customer *StoredFile `json:"customer,omitempty"`
	Seller   *StoredFile `json:"seller,omitempty"`
	Combined *StoredFile `json:"combined,omitempty"`
}

// Contract представляет модель договора по выигравшему предложению.
type Contract struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"projectId"`
	BidID            string         `json:"bidId"`
	CustomerID       string         `json:"customerId"`
	SellerID         string         `json:"sellerId"`
	Status           ContractStatus `json:"status"`
	CustomerTemplate *StoredFile    `json:"customerTemplate,omitempty"`
	SellerTemplate   *StoredFile    `json:"sellerTemplate,omitempty"`
	CustomerSigned   SignedUpload   `json:"customerSignedContract"`
	SellerSigned     SignedUpload   `json:"sellerSignedContract"`
	Terms            ContractTerms  `json:"terms"`
	CurrentRejection *Rejection     `json:"currentRejection,omitempty"`
	RejectionHistory []Rejection    `json:"rejectionHistory,omitempty"`
	Certificates     Certificates   `json:"certificates"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time     `json:"approvedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Upload возвращает слот загрузки стороны.
func (c *Contract) Upload(party Party) *SignedUpload {
	switch party {
	case PartyCustomer:
		return &c.CustomerSigned
	case PartySeller:
		return &c.SellerSigned
	}
	return nil
}

// UploadRequest представляет загрузку подписанного договора стороной.
type UploadRequest struct {
	Party Party      `json:"party"`
	File  StoredFile `json:"file"`
}

// ApprovalRequest представляет утверждение договора администратором.
type ApprovalRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

// RejectionRequest представляет возврат договора на исправление.
type RejectionRequest struct {
	Reason        string     `json:"reason"`
	PartyRequired Party      `json:"partyRequired"`
	RejectedBy    string     `json:"rejectedBy"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// PartyUser возвращает идентификатор пользователя стороны.
func (c *Contract) PartyUser(party Party) string {
	if party == PartySeller {
		return c.SellerID
	}
	return c.CustomerID
}
