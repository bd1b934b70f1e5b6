package paramstyle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

func TestTranslateNamedSourceToEachTarget(t *testing.T) {
	query := "select * from users where id = :id and status = :status"

	cases := []struct {
		style paramstyle.Style
		want  string
	}{
		{paramstyle.Named, "select * from users where id = :id and status = :status"},
		{paramstyle.NamedPercent, "select * from users where id = %(id)s and status = %(status)s"},
		{paramstyle.QuestionPositional, "select * from users where id = ? and status = ?"},
		{paramstyle.PercentPositional, "select * from users where id = %s and status = %s"},
		{paramstyle.Numbered, "select * from users where id = :1 and status = :2"},
		{paramstyle.DollarPositional, "select * from users where id = $1 and status = $2"},
		{paramstyle.NumberedAt, "select * from users where id = @p1 and status = @p2"},
		{paramstyle.NamedAt, "select * from users where id = @id and status = @status"},
	}

	for _, c := range cases {
		tr, err := paramstyle.Translate(query, c.style)
		require.NoErrorf(t, err, "style %s", c.style)
		assert.Equalf(t, c.want, tr.Query, "style %s", c.style)
		assert.Equal(t, []string{"id", "status"}, tr.Occurrences)
	}
}

func TestTranslateNamedPercentSource(t *testing.T) {
	query := "update t set v = %(v)s where k = %(k)s"
	tr, err := paramstyle.Translate(query, paramstyle.DollarPositional)
	require.NoError(t, err)
	assert.Equal(t, "update t set v = $1 where k = $2", tr.Query)
	assert.Equal(t, []string{"v", "k"}, tr.Occurrences)
}

func TestTranslateRepeatedNameSharesSlot(t *testing.T) {
	query := "select :a, :b, :a"
	tr, err := paramstyle.Translate(query, paramstyle.DollarPositional)
	require.NoError(t, err)
	assert.Equal(t, "select $1, $2, $1", tr.Query)
	assert.Equal(t, []string{"a", "b", "a"}, tr.Occurrences)
}

func TestTranslateIgnoresLiteralsAndComments(t *testing.T) {
	query := "select :a -- :not_a_param\n, 'lit :also_not' /* :still_not */ from t where b = :b"
	tr, err := paramstyle.Translate(query, paramstyle.QuestionPositional)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tr.Occurrences)
	assert.Contains(t, tr.Query, "'lit :also_not'")
	assert.Contains(t, tr.Query, "/* :still_not */")
}

func TestTranslateEscapedQuoteInLiteral(t *testing.T) {
	query := "select :a, 'it''s :not_a_param here'"
	tr, err := paramstyle.Translate(query, paramstyle.Named)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tr.Occurrences)
	assert.Contains(t, tr.Query, "'it''s :not_a_param here'")
}

func TestTranslateUnterminatedBlockCommentErrors(t *testing.T) {
	_, err := paramstyle.Translate("select :a /* oops", paramstyle.Named)
	require.Error(t, err)
}

func TestBindMapDropsExtraAndFillsMissing(t *testing.T) {
	tr, err := paramstyle.Translate("select :a, :b", paramstyle.NamedAt)
	require.NoError(t, err)
	bound := tr.BindMap(map[string]any{"a": 1, "extra": "dropped"})
	assert.Equal(t, map[string]any{"a": 1, "b": nil}, bound)
}

func TestBindPositionalRepeatsSameValue(t *testing.T) {
	tr, err := paramstyle.Translate("select :a, :b, :a", paramstyle.DollarPositional)
	require.NoError(t, err)
	bound := tr.BindPositional(map[string]any{"a": 1, "b": 2})
	assert.Equal(t, []any{1, 2, 1}, bound)
}

func TestBindDispatchesOnStyle(t *testing.T) {
	named, err := paramstyle.Translate("select :a", paramstyle.Named)
	require.NoError(t, err)
	_, ok := named.Bind(map[string]any{"a": 1}).(map[string]any)
	assert.True(t, ok)

	positional, err := paramstyle.Translate("select :a", paramstyle.DollarPositional)
	require.NoError(t, err)
	_, ok = positional.Bind(map[string]any{"a": 1}).([]any)
	assert.True(t, ok)
}
