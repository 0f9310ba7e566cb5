package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPgErrorCodes(t *testing.T) {
	unique := errors.Wrap(&pgconn.PgError{Code: "23505"}, "insert product")
	check := errors.Wrap(&pgconn.PgError{Code: "23514"}, "update stock")

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsCheckViolation(unique))
	assert.True(t, IsCheckViolation(check))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "apples", EscapeLike("apples"))
	assert.Equal(t, `50\% off\_sale \\ x`, EscapeLike(`50% off_sale \ x`))
}
