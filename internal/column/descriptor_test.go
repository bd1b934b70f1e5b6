package column_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/column"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/record"
)

func rec(names []string, values map[string]any) record.Record {
	return record.NewFromMap(names, values)
}

func TestRequiredFollowsOpRules(t *testing.T) {
	key := &column.Descriptor{Name: "id", Key: true, Nullable: false}
	val := &column.Descriptor{Name: "note", Key: false, Nullable: true}

	assert.True(t, key.Required(dml.Insert))
	assert.True(t, key.Required(dml.Merge))
	assert.True(t, key.Required(dml.Update))
	assert.True(t, key.Required(dml.Delete))
	assert.True(t, key.Required(dml.SelectIdentity))

	assert.False(t, val.Required(dml.Insert), "nullable column is not required for insert")
	assert.False(t, val.Required(dml.Update), "non-key column is not required for update")
}

func TestContributesToExcludesKeyFromUpdateSet(t *testing.T) {
	key := &column.Descriptor{Name: "id", Key: true}
	val := &column.Descriptor{Name: "note"}
	noUpdate := &column.Descriptor{Name: "created_at", NoUpdate: true}

	assert.False(t, key.ContributesTo(dml.Update))
	assert.True(t, val.ContributesTo(dml.Update))
	assert.False(t, noUpdate.ContributesTo(dml.Update))
	assert.True(t, key.ContributesTo(dml.Delete))
	assert.False(t, val.ContributesTo(dml.Delete))
}

func TestResolveAppliesSourceNullDefault(t *testing.T) {
	d := &column.Descriptor{
		Name:          "region",
		SourceFields:  []string{"region"},
		NullSentinels: []string{"N/A"},
		Default:       "unknown",
	}

	r := rec([]string{"region"}, map[string]any{"region": "N/A"})
	v, failed, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, "unknown", v)
}

func TestResolveRunsTransformChainInOrder(t *testing.T) {
	upper, err := column.ParseTransform("upper", nil, nil)
	require.NoError(t, err)
	strip, err := column.ParseTransform("strip", nil, nil)
	require.NoError(t, err)

	d := &column.Descriptor{
		Name:         "code",
		SourceFields: []string{"code"},
		Transforms:   []column.TransformFunc{strip, upper},
	}
	r := rec([]string{"code"}, map[string]any{"code": "  abc  "})
	v, failed, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, "ABC", v)
}

func TestResolveTransformFailureContinuePolicyNulls(t *testing.T) {
	failing := func(_ context.Context, value any, _ record.Record) (any, error) {
		return nil, assert.AnError
	}
	d := &column.Descriptor{
		Name:         "n",
		SourceFields: []string{"n"},
		Transforms:   []column.TransformFunc{failing},
	}
	r := rec([]string{"n"}, map[string]any{"n": "x"})
	v, failed, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Nil(t, v)
}

func TestResolveTransformFailureRaisePolicyErrors(t *testing.T) {
	failing := func(_ context.Context, value any, _ record.Record) (any, error) {
		return nil, assert.AnError
	}
	d := &column.Descriptor{
		Name:         "n",
		SourceFields: []string{"n"},
		Transforms:   []column.TransformFunc{failing},
	}
	r := rec([]string{"n"}, map[string]any{"n": "x"})
	_, failed, err := d.Resolve(context.Background(), r, column.RaiseOnError)
	require.Error(t, err)
	assert.True(t, failed)
}

func TestResolveWholeRecordSource(t *testing.T) {
	d := &column.Descriptor{
		Name:        "combined",
		WholeRecord: true,
	}
	r := rec([]string{"a", "b"}, map[string]any{"a": 1, "b": 2})
	v, _, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	got, ok := v.(record.Record)
	require.True(t, ok)
	assert.True(t, got.Equal(r))
}

func TestResolveDBExprWithoutParamDiscardsValue(t *testing.T) {
	d := &column.Descriptor{
		Name:         "updated_at",
		SourceFields: []string{"updated_at"},
		DBExpr:       "current_timestamp",
	}
	r := rec([]string{"updated_at"}, map[string]any{"updated_at": "2020-01-01"})
	v, failed, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Nil(t, v)
	assert.False(t, d.HasParam())
}

func TestResolveDBExprWithParamKeepsValue(t *testing.T) {
	d := &column.Descriptor{
		Name:         "password",
		SourceFields: []string{"password"},
		DBExpr:       "crypt(#, gen_salt('bf'))",
	}
	r := rec([]string{"password"}, map[string]any{"password": "hunter2"})
	v, _, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
	assert.True(t, d.HasParam())
}

func TestResolveMultiFieldSourceAssemblesList(t *testing.T) {
	d := &column.Descriptor{
		Name:         "name",
		SourceFields: []string{"first", "last"},
	}
	r := rec([]string{"first", "last"}, map[string]any{"first": "Ada", "last": "Lovelace"})
	v, _, err := d.Resolve(context.Background(), r, column.ContinueOnError)
	require.NoError(t, err)
	assert.Equal(t, []any{"Ada", "Lovelace"}, v)
}
