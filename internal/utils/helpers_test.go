package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimitOffset(t *testing.T) {
	tests := []struct {
		limit, offset string
		wantLimit     int
		wantOffset    int
		wantErr       bool
	}{
		{"", "", 5, 0, false},
		{"10", "20", 10, 20, false},
		{"50", "0", 50, 0, false},
		{"0", "", 0, 0, true},
		{"51", "", 0, 0, true},
		{"abc", "", 0, 0, true},
		{"", "-1", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.limit+"/"+tt.offset, func(t *testing.T) {
			limit, offset, err := ParseLimitOffset(tt.limit, tt.offset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestSendError(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("submit: %w", models.NewValidationError([]models.Violation{{Field: "title", Rule: "must not be empty"}}))

		status := SendError(rec, err, "failed")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ValidationError", body["kind"])
		assert.Len(t, body["violations"], 1)
	})

	t.Run("partial acceptance", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := &models.PartialAcceptanceError{
			OperationID:       "op-1",
			ProjectID:         "p-1",
			FailedStep:        models.StepRejectSiblings,
			PendingSiblingIDs: []string{"b"},
			Err:               errors.New("connection reset"),
		}

		assert.Equal(t, http.StatusInternalServerError, SendError(rec, err, "failed"))
		var body struct {
			Kind    string `json:"kind"`
			Details struct {
				OperationID       string   `json:"operationId"`
				FailedStep        string   `json:"failedStep"`
				PendingSiblingIDs []string `json:"pendingSiblingIds"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "PartialAcceptanceFailure", body.Kind)
		assert.Equal(t, "op-1", body.Details.OperationID)
		assert.Equal(t, "reject_siblings", body.Details.FailedStep)
		assert.Equal(t, []string{"b"}, body.Details.PendingSiblingIDs)
	})

	t.Run("unclassified", func(t *testing.T) {
		rec := httptest.NewRecorder()
		assert.Equal(t, http.StatusInternalServerError, SendError(rec, errors.New("boom"), "failed to load"))
		assert.Contains(t, rec.Body.String(), "failed to load")
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}
