package threaddata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleSelect(t *testing.T) {
	q, args, err := NewQueryBuilder("thread_metrics").Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM thread_metrics", q)
	assert.Empty(t, args)
}

func TestBuilder_SelectColumns(t *testing.T) {
	q, args, err := NewQueryBuilder("thread_metrics").
		Select("thread", "AVG(value) AS mean").
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT thread, AVG(value) AS mean FROM thread_metrics", q)
	assert.Empty(t, args)
}

func TestBuilder_Conditions(t *testing.T) {
	q, args, err := NewQueryBuilder("thread_metrics").
		Eq("metric", 3).
		In("thread", 0, 2, 5).
		Where("value > ?", 0.5).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM thread_metrics WHERE metric = ? AND thread IN (?, ?, ?) AND value > ?", q)
	assert.Equal(t, []any{3, 0, 2, 5, 0.5}, args)
}

func TestBuilder_EmptyInIsIgnored(t *testing.T) {
	q, args, err := NewQueryBuilder("ranks").In("thread").Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ranks", q)
	assert.Empty(t, args)
}

func TestBuilder_OrderAndLimit(t *testing.T) {
	q, args, err := NewQueryBuilder("thread_metrics").
		Eq("cct", 7).
		OrderBy("thread", "-value").
		Limit(10).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM thread_metrics WHERE cct = ? ORDER BY thread, value DESC LIMIT ?", q)
	assert.Equal(t, []any{7, 10}, args)
}

func TestBuilder_MissingTable(t *testing.T) {
	_, _, err := NewQueryBuilder("").Build()
	assert.Error(t, err)
}
