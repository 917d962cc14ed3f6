// Package tasks содержит фоновые задачи сервиса на asynq: периодический
// перевод просроченных предложений в expired.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Типы задач.
const (
	TypeExpireSweep = "proposal:expire_sweep"
)

const sweepQueue = "default"

// Expirer переводит предложения с прошедшим сроком в expired.
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

// ExpireSweepPayload - данные задачи. Пустой RequestedAt заполняет обработчик.
type ExpireSweepPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewExpireSweepTask создает задачу обхода просроченных предложений.
func NewExpireSweepTask(requestedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireSweepPayload{RequestedAt: requestedAt.UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal expire sweep payload: %w", err)
	}
	return asynq.NewTask(TypeExpireSweep, payload), nil
}

// TaskProcessor обрабатывает задачи и хранит их зависимости.
type TaskProcessor struct {
	expirer Expirer
	logger  *slog.Logger
}

func NewTaskProcessor(expirer Expirer, logger *slog.Logger) *TaskProcessor {
	return &TaskProcessor{expirer: expirer, logger: logger}
}

// HandleExpireSweepTask выполняет обход. Ошибка хранилища возвращается для
// повтора, некорректные данные задачи - с asynq.SkipRetry.
func (p *TaskProcessor) HandleExpireSweepTask(ctx context.Context, t *asynq.Task) error {
	var payload ExpireSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal expire sweep payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	started := time.Now()
	if payload.RequestedAt.IsZero() {
		payload.RequestedAt = started.UTC()
	}
	n, err := p.expirer.ExpireLapsed(ctx)
	if err != nil {
		p.logger.Error("expire sweep failed", slog.Int("expired", n), slog.Any("error", err))
		return fmt.Errorf("expire sweep: %w", err)
	}
	p.logger.Info("expire sweep finished",
		slog.Int("expired", n),
		slog.Duration("took", time.Since(started)),
		slog.Time("requested_at", payload.RequestedAt))
	return nil
}

// SetupServer создает сервер asynq и регистрирует обработчики.
func SetupServer(opt asynq.RedisConnOpt, processor *TaskProcessor, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{sweepQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExpireSweep, processor.HandleExpireSweepTask)
	return srv, mux
}

// uniqueTTL возвращает срок уникальности задачи, меньший интервала запуска.
func uniqueTTL(interval time.Duration) time.Duration {
	ttl := interval / 2
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// NewScheduler создает планировщик, ставящий обход в очередь раз в interval.
func NewScheduler(opt asynq.RedisConnOpt, interval time.Duration, loc *time.Location, logger *slog.Logger) (*asynq.Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("expiry sweep interval %s is too short", interval)
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			logger.Error("failed to enqueue task", slog.String("type", task.Type()), slog.Any("error", err))
		},
	})

	// Время запроса проставляет обработчик.
	task := asynq.NewTask(TypeExpireSweep, nil)
	entryID, err := scheduler.Register("@every "+interval.String(), task,
		asynq.Queue(sweepQueue),
		asynq.MaxRetry(3),
		asynq.Unique(uniqueTTL(interval)),
	)
	if err != nil {
		return nil, fmt.Errorf("register expire sweep: %w", err)
	}
	logger.Info("expire sweep scheduled", slog.String("entry_id", entryID), slog.Duration("interval", interval))
	return scheduler, nil
}
