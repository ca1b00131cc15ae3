package derived

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"hmdamart/pkg/platform/sentinel"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"ledger unique violation", &pq.Error{Code: "23505", Constraint: partitionsPKey}, sentinel.ErrConflict},
		{"row unique violation", &pq.Error{Code: "23505", Constraint: "hmda_classified_loans_pkey"}, sentinel.ErrInvalidState},
		{"connection failure", &pq.Error{Code: "08006"}, sentinel.ErrUnavailable},
		{"serialization failure", &pq.Error{Code: "40001"}, sentinel.ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, sentinel.ErrUnavailable},
		{"bad connection", driver.ErrBadConn, sentinel.ErrUnavailable},
		{"wrapped bad connection", fmt.Errorf("commit tx: %w", driver.ErrBadConn), sentinel.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	t.Run("syntax error is structural", func(t *testing.T) {
		err := &pq.Error{Code: "42601"}
		got := classify(err)
		assert.Same(t, err, got)
		assert.NotErrorIs(t, got, sentinel.ErrUnavailable)
	})

	t.Run("context and sentinel errors pass through", func(t *testing.T) {
		assert.Equal(t, context.Canceled, classify(context.Canceled))
		wrapped := fmt.Errorf("fill: %w", sentinel.ErrInvalidState)
		assert.Equal(t, wrapped, classify(wrapped))
		assert.NoError(t, classify(nil))
	})

	t.Run("plain error unchanged", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, err, classify(err))
	})
}
