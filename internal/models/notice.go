package models

import "time"

type (
	Audience string // Получатели уведомления
	Severity string // Важность уведомления
)

const (
	AudienceUser     Audience = "user"
	AudienceAdmin    Audience = "admin"
	AudienceSeller   Audience = "seller"
	AudienceCustomer Audience = "customer"
	AudienceAll      Audience = "all"

	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice представляет модель уведомления.
type Notice struct {
	ID           string     `json:"id"`
	Event        string     `json:"event"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Audience     Audience   `json:"audience"`
	Severity     Severity   `json:"severity"`
	TargetUserID string     `json:"targetUserId,omitempty"`
	ActiveFrom   time.Time  `json:"activeFrom"`
	ActiveUntil  *time.Time `json:"activeUntil,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
