package services

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/proposal-service/internal/clock"
	"github.com/senyabanana/proposal-service/internal/lock"
	"github.com/senyabanana/proposal-service/internal/models"
	"github.com/senyabanana/proposal-service/internal/repository"
)

// projectGuard сериализует изменения проекта и его предложений: блокировка
// по ключу проекта, затем транзакция с блокировкой строки проекта.
type projectGuard struct {
	store  repository.Store
	locker lock.Locker
}

func (g projectGuard) run(ctx context.Context, projectID string, fn func(tx repository.Store, project *models.Project) error) error {
	unlock, err := g.locker.Lock(ctx, lock.ProjectKey(projectID))
	if err != nil {
		return fmt.Errorf("lock project %s: %w", projectID, err)
	}
	defer unlock()

	return g.store.InTx(ctx, func(tx repository.Store) error {
		project, err := tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		return fn(tx, project)
	})
}

// today возвращает текущую календарную дату в часовом поясе сервиса.
func today(c clock.Clock, loc *time.Location) models.Date {
	return models.DateOf(c.Now(), loc)
}

func isOwner(actor models.Actor, role models.Role, userID string) bool {
	return actor.Role == role && actor.UserID != "" && actor.UserID == userID
}
