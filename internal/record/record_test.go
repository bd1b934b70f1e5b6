package record_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/record"
)

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{"First Name", "ID", "a--b__c", "", "Już Done 2", "snake_case"}
	for _, c := range cases {
		once := record.Normalize(c)
		twice := record.Normalize(once)
		assert.Equalf(t, once, twice, "Normalize not idempotent for %q", c)
	}
}

func TestSchemaCollisionSuffix(t *testing.T) {
	s := record.NewSchema([]string{"First Name", "first-name", "first_name"})
	norm := s.NormalizedNames()
	seen := map[string]bool{}
	for _, n := range norm {
		require.Falsef(t, seen[n], "duplicate normalized name %q in %v", n, norm)
		seen[n] = true
	}
	assert.Equal(t, []string{"first_name", "first_name_2", "first_name_3"}, norm)
}

func TestSchemaCollisionAgainstLiteralName(t *testing.T) {
	// "a_2" isn't a repeat of "a"'s base, but it collides with the
	// normalized name "a"'s second occurrence would otherwise claim.
	s := record.NewSchema([]string{"a", "a", "a_2"})
	norm := s.NormalizedNames()
	seen := map[string]bool{}
	for _, n := range norm {
		require.Falsef(t, seen[n], "duplicate normalized name %q in %v", n, norm)
		seen[n] = true
	}
	assert.Equal(t, []string{"a", "a_2", "a_2_2"}, norm)
}

func TestRecordAccessAlignment(t *testing.T) {
	schema := record.NewSchema([]string{"ID", "Full Name"})
	r := record.New(schema, []any{7, "Toph"})

	for i := 0; i < r.Len(); i++ {
		byOriginal, err := r.Value(r.Keys(false)[i])
		require.NoError(t, err)
		byNormalized, err := r.Value(r.Keys(true)[i])
		require.NoError(t, err)
		assert.Equal(t, r.At(i), byOriginal)
		assert.Equal(t, r.At(i), byNormalized)
	}
}

func TestRecordGetMissingKey(t *testing.T) {
	r := record.NewFromMap([]string{"a"}, map[string]any{"a": 1})
	_, err := r.Value("missing")
	require.Error(t, err)
	assert.Equal(t, "fallback", r.Get("missing", "fallback"))
}

func TestRecordSetMutatesOrDetaches(t *testing.T) {
	schema := record.NewSchema([]string{"a", "b"})
	r1 := record.New(schema, []any{1, 2})
	r2 := r1.Set("a", 99)
	require.Same(t, schema, r2.Schema(), "updating an existing key must not detach the schema")
	assert.Equal(t, 1, r1.At(0), "original record must stay unchanged")
	assert.Equal(t, 99, r2.At(0))

	r3 := r1.Set("c", "new")
	assert.NotSame(t, schema, r3.Schema(), "adding a column must detach to a new schema")
	assert.Equal(t, []string{"a", "b", "c"}, r3.Keys(false))
}

func TestRecordMapRoundTrip(t *testing.T) {
	names := []string{"id", "name"}
	values := map[string]any{"id": 1, "name": "Aang"}
	r := record.NewFromMap(names, values)
	if diff := cmp.Diff(values, r.Map()); diff != "" {
		t.Fatalf("Map() mismatch (-want +got):\n%s", diff)
	}
}
