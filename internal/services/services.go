package services

import (
	"fmt"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/notify"
)

// Outcome - итог перехода, используется как ключ счетчика в отчете цикла.
type Outcome string

const (
	OutcomeSubmitted          Outcome = "draftedToPending"
	OutcomeActivated          Outcome = "pendingToActive"
	OutcomeRound1Completed    Outcome = "round1Completed"
	OutcomeRound1NoBids       Outcome = "round1NoBids"
	OutcomeRound2Started      Outcome = "round2Started"
	OutcomeSelectionExpired   Outcome = "selectionExpired"
	OutcomeRound2Completed    Outcome = "round2Completed"
	OutcomeRound2NoBids       Outcome = "round2NoBids"
	OutcomeContractCreated    Outcome = "contractsCreated"
	OutcomePendingSeller      Outcome = "contractsToPendingSeller"
	OutcomePendingAdmin       Outcome = "contractsToPendingAdmin"
	OutcomeCorrectionResolved Outcome = "correctionsResolved"
	OutcomeContractCancelled  Outcome = "contractsCancelled"
	OutcomeContractApproved   Outcome = "contractsApproved"
	OutcomeContractCorrecting Outcome = "contractsToCorrecting"
	OutcomeProjectCompleted   Outcome = "projectsCompleted"
	OutcomeProjectArchived    Outcome = "projectsArchived"
	OutcomeProjectApproved    Outcome = "projectsApproved"
	OutcomeProjectRejected    Outcome = "projectsRejected"
	OutcomeProjectCancelled   Outcome = "projectsCancelled"
)

// Transition описывает результат обработки одной сущности.
// Пустой Outcomes означает, что условия перехода не выполнены и ничего не изменилось.
type Transition struct {
	Outcomes []Outcome
	Notices  []notify.Message
}

// Applied сообщает, что переход состоялся.
func (t Transition) Applied() bool {
	return len(t.Outcomes) > 0
}

func changed(outcome Outcome, notices ...notify.Message) Transition {
	return Transition{Outcomes: []Outcome{outcome}, Notices: notices}
}

// merge дописывает другой переход к текущему.
func (t Transition) merge(other Transition) Transition {
	t.Outcomes = append(t.Outcomes, other.Outcomes...)
	t.Notices = append(t.Notices, other.Notices...)
	return t
}

// Settings - настраиваемые окна и размеры отбора.
type Settings struct {
	AutoSubmitGrace  time.Duration
	SelectionWindow  time.Duration
	Round2Window     time.Duration
	CorrectionWindow time.Duration
	ArchiveRetention time.Duration
	ShortlistSize    int
	FinalistCount    int
}

// DefaultSettings возвращает значения для боевого окружения.
func DefaultSettings() Settings {
	return Settings{
		AutoSubmitGrace:  24 * time.Hour,
		SelectionWindow:  24 * time.Hour,
		Round2Window:     24 * time.Hour,
		CorrectionWindow: 48 * time.Hour,
		ArchiveRetention: 30 * 24 * time.Hour,
		ShortlistSize:    10,
		FinalistCount:    3,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
