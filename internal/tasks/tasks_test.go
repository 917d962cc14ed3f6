package tasks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/senyabanana/proposal-service/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireLapsed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleExpireSweepTask_Success(t *testing.T) {
	expirer := new(MockExpirer)
	expirer.On("ExpireLapsed", mock.Anything).Return(3, nil).Once()
	p := tasks.NewTaskProcessor(expirer, discard())

	task, err := tasks.NewExpireSweepTask(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeExpireSweep, task.Type())

	assert.NoError(t, p.HandleExpireSweepTask(context.Background(), task))
	expirer.AssertExpectations(t)
}

func TestHandleExpireSweepTask_StoreErrorIsRetried(t *testing.T) {
	expirer := new(MockExpirer)
	storeErr := errors.New("connection refused")
	expirer.On("ExpireLapsed", mock.Anything).Return(1, storeErr).Once()
	p := tasks.NewTaskProcessor(expirer, discard())

	err := p.HandleExpireSweepTask(context.Background(), asynq.NewTask(tasks.TypeExpireSweep, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	expirer.AssertExpectations(t)
}

func TestHandleExpireSweepTask_BadPayload(t *testing.T) {
	expirer := new(MockExpirer)
	p := tasks.NewTaskProcessor(expirer, discard())

	err := p.HandleExpireSweepTask(context.Background(), asynq.NewTask(tasks.TypeExpireSweep, []byte("{not json")))
	assert.True(t, errors.Is(err, asynq.SkipRetry), "bad payload must not be retried")
	expirer.AssertNotCalled(t, "ExpireLapsed", mock.Anything)
}

func TestNewScheduler_RejectsShortInterval(t *testing.T) {
	_, err := tasks.NewScheduler(asynq.RedisClientOpt{Addr: "localhost:6379"}, 10*time.Millisecond, time.UTC, discard())
	assert.Error(t, err)
}

func TestHandleExpireSweepTask_StampsRequestedAt(t *testing.T) {
	expirer := new(MockExpirer)
	expirer.On("ExpireLapsed", mock.Anything).Return(0, nil).Once()
	var buf bytes.Buffer
	p := tasks.NewTaskProcessor(expirer, slog.New(slog.NewJSONHandler(&buf, nil)))

	before := time.Now().UTC()
	require.NoError(t, p.HandleExpireSweepTask(context.Background(), asynq.NewTask(tasks.TypeExpireSweep, nil)))

	var entry struct {
		RequestedAt time.Time `json:"requested_at"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.False(t, entry.RequestedAt.Before(before.Add(-time.Second)), "requested_at %s", entry.RequestedAt)
	expirer.AssertExpectations(t)
}
