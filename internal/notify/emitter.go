// Package notify формирует и сохраняет уведомления для пользователей и администраторов.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/repository"

	"github.com/google/uuid"
)

// Emitter сохраняет уведомления. Повторная отправка при сбое допустима.
type Emitter struct {
	repo    repository.NoticeRepository
	catalog *Catalog
	logger  *log.Logger
	clock   func() time.Time
}

// NewEmitter создает новый экземпляр Emitter.
func NewEmitter(repo repository.NoticeRepository, catalog *Catalog, logger *log.Logger) *Emitter {
	return &Emitter{repo: repo, catalog: catalog, logger: logger, clock: time.Now}
}

// Emit сохраняет все сообщения. Ошибка по одному сообщению не прерывает остальные.
func (e *Emitter) Emit(ctx context.Context, msgs ...Message) error {
	var errs []error
	for _, msg := range msgs {
		now := e.clock().UTC()
		notice, err := e.catalog.Render(msg, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		notice.ID = uuid.New().String()
		if err := e.repo.CreateNotice(ctx, &notice); err != nil {
			errs = append(errs, fmt.Errorf("notify: store %s: %w", msg.Event, err))
			continue
		}
		if e.logger != nil {
			e.logger.Printf("notice %s audience=%s target=%s", msg.Event, notice.Audience, notice.TargetUserID)
		}
	}
	return errors.Join(errs...)
}
