package frame

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestConformFillsDefaults(t *testing.T) {
	f := New("project_id")
	f.AppendRow(map[string]Value{"project_id": String("VCS1")})

	out := Projects.Conform(f)
	require.True(t, out.HasColumn("retired"))
	require.Equal(t, int64(0), out.Value("retired", 0).Int())
	require.Equal(t, int64(0), out.Value("issued", 0).Int())
	require.False(t, out.Value("is_compliance", 0).Bool())
	require.True(t, out.Value("country", 0).IsNull())
	require.True(t, out.Value("listed_at", 0).IsNull())
}

func TestConformIsIdempotent(t *testing.T) {
	f := New("project_id")
	f.AppendRow(map[string]Value{"project_id": String("VCS1")})

	once := Credits.Conform(f).Copy()
	twice := Credits.Conform(once.Copy())

	require.Equal(t, once.Columns(), twice.Columns())
	for _, name := range once.Columns() {
		require.True(t, once.Value(name, 0).Equal(twice.Value(name, 0)), "column %s changed", name)
	}
}

func TestValidateSortsColumnsAlphabetically(t *testing.T) {
	f := New()
	f.AppendRow(map[string]Value{
		"project_id":       String("VCS1"),
		"vintage":          Int(2020),
		"quantity":         Int(100),
		"transaction_date": Time(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
		"transaction_type": String("issuance"),
		"registry":         String("verra"),
	})
	Credits.Conform(f)

	out, err := Credits.Validate(f)
	require.NoError(t, err)

	cols := out.Columns()
	for i := 1; i < len(cols); i++ {
		require.Less(t, cols[i-1], cols[i])
	}
}

func TestValidateStableUnderRepetition(t *testing.T) {
	f := New()
	f.AppendRow(map[string]Value{"project_id": String("ACR1"), "quantity": Int(5)})
	Credits.Conform(f)

	once, err := Credits.Validate(f)
	require.NoError(t, err)
	twice, err := Credits.Validate(once)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(once.Columns(), twice.Columns()))
	for _, name := range once.Columns() {
		require.True(t, once.Value(name, 0).Equal(twice.Value(name, 0)))
	}
}

func TestValidateZeroRows(t *testing.T) {
	f := New()
	Credits.Conform(f)
	out, err := Credits.Validate(f)
	require.NoError(t, err)
	require.Equal(t, 0, out.Len())
	require.Len(t, out.Columns(), len(Credits.Columns))
}

func TestValidateCollectsAllViolations(t *testing.T) {
	f := New()
	f.AppendRow(map[string]Value{
		"project_id": Null(),          // non-nullable
		"quantity":   Int(-5),         // negative
		"vintage":    String("2020"),  // wrong type
	})
	Credits.Conform(f)

	_, err := Credits.Validate(f)
	require.Error(t, err)

	var verr *SchemaValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 3)
}

func TestValidateMissingColumn(t *testing.T) {
	f := New("project_id")
	f.AppendRow(map[string]Value{"project_id": String("VCS1")})

	_, err := Credits.Validate(f)
	var verr *SchemaValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Error(), "quantity")
}
