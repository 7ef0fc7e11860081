package repository

import (
	"math"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLimitOffset(t *testing.T) {
	limit, offset := limitOffset(0, 0)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 0, offset)

	limit, offset = limitOffset(3, 10)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	limit, _ = limitOffset(1, 5000)
	assert.Equal(t, maxPageSize, limit)

	limit, offset = limitOffset(math.MaxInt, 200)
	assert.Equal(t, 200, limit)
	assert.Equal(t, (maxPage-1)*200, offset)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%budi\_s\%%`, likePattern("  Budi_S% "))
}
