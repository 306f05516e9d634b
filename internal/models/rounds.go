package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Round - этап торгов. Значения упорядочены и только растут в пределах одного цикла торгов.
type Round uint8

const (
	RoundNone      Round = iota // Торги не начаты
	RoundOne                    // Открытый первый тур
	RoundSelection              // Выбор финалистов заказчиком (1.5)
	RoundTwo                    // Второй тур среди финалистов
	RoundAwarded                // Победитель определен (3)
)

var roundNumbers = map[Round]float64{
	RoundNone:      0,
	RoundOne:       1,
	RoundSelection: 1.5,
	RoundTwo:       2,
	RoundAwarded:   3,
}

// Number возвращает номер этапа в принятой нумерации (1, 1.5, 2, 3).
func (r Round) Number() float64 {
	return roundNumbers[r]
}

func (r Round) String() string {
	return strconv.FormatFloat(r.Number(), 'f', -1, 64)
}

// ParseRound переводит номер этапа в Round.
func ParseRound(n float64) (Round, error) {
	for round, number := range roundNumbers {
		if number == n {
			return round, nil
		}
	}
	return RoundNone, fmt.Errorf("unknown bidding round %v", n)
}

func (r Round) MarshalJSON() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Round) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	parsed, err := ParseRound(n)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoundStatus - статус отдельного тура.
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// RoundPhase - состояние тура. Реализации: PendingRound, ActiveRound, CompletedRound.
type RoundPhase interface {
	Status() RoundStatus
	roundPhase()
}

// PendingRound - тур еще не открыт. Nominated хранит выбор заказчика для второго тура.
type PendingRound struct {
	Nominated []string
}

// ActiveRound - тур идет в окне [Start, End]. Participants - допущенные к туру предложения,
// пусто для первого тура.
type ActiveRound struct {
	Start        time.Time
	End          time.Time
	Participants []string
}

// CompletedRound - тур закрыт, Selected содержит отобранные предложения.
type CompletedRound struct {
	Start       time.Time
	End         time.Time
	CompletedAt time.Time
	Selected    []string
}

func (PendingRound) Status() RoundStatus   { return RoundPending }
func (ActiveRound) Status() RoundStatus    { return RoundActive }
func (CompletedRound) Status() RoundStatus { return RoundCompleted }

func (PendingRound) roundPhase()   {}
func (ActiveRound) roundPhase()    {}
func (CompletedRound) roundPhase() {}

// Award - итог третьего этапа.
type Award struct {
	WinningBid  string    `json:"winningBid"`
	CompletedAt time.Time `json:"completedAt"`
}

// BiddingRounds описывает ход торгов по проекту.
type BiddingRounds struct {
	Current Round
	Round1  RoundPhase
	Round2  RoundPhase
	Award   *Award
}

// NewBiddingRounds возвращает состояние торгов до активации проекта.
func NewBiddingRounds() BiddingRounds {
	return BiddingRounds{Current: RoundNone, Round1: PendingRound{}, Round2: PendingRound{}}
}

func phaseOrPending(p RoundPhase) RoundPhase {
	if p == nil {
		return PendingRound{}
	}
	return p
}

// Round1Completed сообщает, что первый тур закрыт с отбором.
func (b BiddingRounds) Round1Completed() bool {
	_, ok := b.Round1.(CompletedRound)
	return ok
}

// Round2Completed сообщает, что второй тур закрыт.
func (b BiddingRounds) Round2Completed() bool {
	_, ok := b.Round2.(CompletedRound)
	return ok
}

// Nominated возвращает выбор заказчика для второго тура.
func (b BiddingRounds) Nominated() []string {
	if pending, ok := b.Round2.(PendingRound); ok {
		return pending.Nominated
	}
	return nil
}

// Validate проверяет согласованность текущего этапа и состояний туров.
func (b BiddingRounds) Validate() error {
	r1 := phaseOrPending(b.Round1).Status()
	r2 := phaseOrPending(b.Round2).Status()
	ok := false
	switch b.Current {
	case RoundNone:
		ok = r1 == RoundPending && r2 == RoundPending && b.Award == nil
	case RoundOne:
		ok = r1 == RoundActive && r2 == RoundPending && b.Award == nil
	case RoundSelection:
		ok = r1 == RoundCompleted && r2 == RoundPending && b.Award == nil
	case RoundTwo:
		ok = r1 == RoundCompleted && r2 == RoundActive && b.Award == nil
	case RoundAwarded:
		ok = r1 == RoundCompleted && r2 == RoundCompleted && b.Award != nil
	}
	if !ok {
		return fmt.Errorf("%w: round %s with round1=%s round2=%s", ErrValidation, b.Current, r1, r2)
	}
	return nil
}

type roundWire struct {
	Status       RoundStatus `json:"status"`
	StartDate    *time.Time  `json:"startDate,omitempty"`
	EndDate      *time.Time  `json:"endDate,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	SelectedBids []string    `json:"selectedBids,omitempty"`
}

type awardWire struct {
	Status      RoundStatus `json:"status"`
	WinningBid  string      `json:"winningBid,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

type roundsWire struct {
	CurrentRound    Round     `json:"currentRound"`
	Round1          roundWire `json:"round1"`
	Round2          roundWire `json:"round2"`
	Round3          awardWire `json:"round3"`
	Round1Completed bool      `json:"round1Completed"`
	Round2Completed bool      `json:"round2Completed"`
}

func encodePhase(p RoundPhase) roundWire {
	switch phase := phaseOrPending(p).(type) {
	case ActiveRound:
		return roundWire{Status: RoundActive, StartDate: &phase.Start, EndDate: &phase.End, SelectedBids: phase.Participants}
	case CompletedRound:
		return roundWire{
			Status:       RoundCompleted,
			StartDate:    &phase.Start,
			EndDate:      &phase.End,
			CompletedAt:  &phase.CompletedAt,
			SelectedBids: phase.Selected,
		}
	case PendingRound:
		return roundWire{Status: RoundPending, SelectedBids: phase.Nominated}
	}
	return roundWire{Status: RoundPending}
}

func decodePhase(w roundWire) (RoundPhase, error) {
	deref := func(t *time.Time) time.Time {
		if t == nil {
			return time.Time{}
		}
		return *t
	}
	switch w.Status {
	case RoundPending, "":
		return PendingRound{Nominated: w.SelectedBids}, nil
	case RoundActive:
		if w.StartDate == nil || w.EndDate == nil {
			return nil, fmt.Errorf("active round without window")
		}
		return ActiveRound{Start: *w.StartDate, End: *w.EndDate, Participants: w.SelectedBids}, nil
	case RoundCompleted:
		return CompletedRound{
			Start:       deref(w.StartDate),
			End:         deref(w.EndDate),
			CompletedAt: deref(w.CompletedAt),
			Selected:    w.SelectedBids,
		}, nil
	}
	return nil, fmt.Errorf("unknown round status %q", w.Status)
}

func (b BiddingRounds) MarshalJSON() ([]byte, error) {
	wire := roundsWire{
		CurrentRound:    b.Current,
		Round1:          encodePhase(b.Round1),
		Round2:          encodePhase(b.Round2),
		Round3:          awardWire{Status: RoundPending},
		Round1Completed: b.Round1Completed(),
		Round2Completed: b.Round2Completed(),
	}
	if b.Award != nil {
		completedAt := b.Award.CompletedAt
		wire.Round3 = awardWire{Status: RoundCompleted, WinningBid: b.Award.WinningBid, CompletedAt: &completedAt}
	}
	return json.Marshal(wire)
}

func (b *BiddingRounds) UnmarshalJSON(data []byte) error {
	var wire roundsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	round1, err := decodePhase(wire.Round1)
	if err != nil {
		return fmt.Errorf("round1: %w", err)
	}
	round2, err := decodePhase(wire.Round2)
	if err != nil {
		return fmt.Errorf("round2: %w", err)
	}
	out := BiddingRounds{Current: wire.CurrentRound, Round1: round1, Round2: round2}
	if wire.Round3.Status == RoundCompleted {
		award := &Award{WinningBid: wire.Round3.WinningBid}
		if wire.Round3.CompletedAt != nil {
			award.CompletedAt = *wire.Round3.CompletedAt
		}
		out.Award = award
	}
	*b = out
	return nil
}
