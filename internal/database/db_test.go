package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	assert.NoError(t, MapPostgresError(nil))
	assert.ErrorIs(t, MapPostgresError(pgx.ErrNoRows), models.ErrNotFound)
	assert.ErrorIs(t, MapPostgresError(fmt.Errorf("query: %w", pgx.ErrNoRows)), models.ErrNotFound)

	checkViolation := &pgconn.PgError{Code: "23514"}
	assert.ErrorIs(t, MapPostgresError(fmt.Errorf("insert: %w", checkViolation)), models.ErrBadRequest)

	other := errors.New("connection reset")
	assert.Equal(t, other, MapPostgresError(other))
}
