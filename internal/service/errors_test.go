package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/shenikar/transit_pulse/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "store unavailable", err: fmt.Errorf("%w: query reports: %w", service.ErrStoreUnavailable, errors.New("reset")), want: true},
		{name: "deadline", err: fmt.Errorf("lock: %w", context.DeadlineExceeded), want: true},
		{name: "validation", err: fmt.Errorf("%w: bad key", service.ErrValidation), want: false},
		{name: "invalid transition", err: service.ErrInvalidTransition, want: false},
		{name: "not found", err: fmt.Errorf("incident: %w", models.ErrNotFound), want: false},
		{name: "bare conflict", err: service.ErrConcurrentConflict, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.IsRetriable(tt.err))
		})
	}
}

func TestNotFoundMatchesStoreSentinel(t *testing.T) {
	err := fmt.Errorf("incident with id 1: %w", models.ErrNotFound)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
