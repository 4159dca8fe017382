package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shenikar/transit_pulse/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestIsOpenIncidentViolation(t *testing.T) {
	violation := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: openIncidentIndex}
	assert.True(t, isOpenIncidentViolation(violation))
	assert.True(t, isOpenIncidentViolation(fmt.Errorf("insert: %w", violation)))

	otherIndex := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "incidents_pkey"}
	assert.False(t, isOpenIncidentViolation(otherIndex))

	checkViolation := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: openIncidentIndex}
	assert.False(t, isOpenIncidentViolation(checkViolation))

	assert.False(t, isOpenIncidentViolation(errors.New("connection reset")))
}

func TestKeyArgs(t *testing.T) {
	since := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	key := models.DedupKey{AgencyID: "mta", RouteID: "L", DirectionID: 1, StopID: "L08", Type: models.ReportTypeDelay}

	assert.Equal(t, []any{"mta", "L", 1, "L08", "DELAY", since}, keyArgs(key, since))
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	if got := nullableString("anon-1"); assert.NotNil(t, got) {
		assert.Equal(t, "anon-1", *got)
	}
}

func TestIncidentCacheKey(t *testing.T) {
	key := incidentCacheKey([16]byte{1})
	assert.Equal(t, "transit_pulse:incident:01000000-0000-0000-0000-000000000000", key)
}
