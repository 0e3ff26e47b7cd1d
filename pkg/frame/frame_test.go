package frame

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	require.True(t, v.IsNull())
	require.Equal(t, "", v.Format())
	require.True(t, v.Equal(Null()))
}

func TestAppendRowAddsColumns(t *testing.T) {
	f := New("a")
	f.AppendRow(map[string]Value{"a": Int(1)})
	f.AppendRow(map[string]Value{"a": Int(2), "b": String("x")})

	require.Equal(t, 2, f.Len())
	require.Equal(t, []string{"a", "b"}, f.Columns())
	require.True(t, f.Value("b", 0).IsNull())
	require.Equal(t, "x", f.Value("b", 1).Str())
}

func TestSetColumnOnEmptyFrame(t *testing.T) {
	f := New("a", "b")
	f.SetColumn("a", []Value{Int(1), Int(2)})

	require.Equal(t, 2, f.Len())
	require.True(t, f.Value("b", 0).IsNull())
	require.True(t, f.Value("b", 1).IsNull())
}

func TestRenameAndDrop(t *testing.T) {
	f := New("old", "keep")
	f.AppendRow(map[string]Value{"old": Int(1), "keep": Int(2)})

	f.Rename(map[string]string{"old": "new", "absent": "whatever"})
	require.False(t, f.HasColumn("old"))
	require.Equal(t, int64(1), f.Value("new", 0).Int())

	f.Drop("new", "absent")
	require.Equal(t, []string{"keep"}, f.Columns())
}

func TestSortByNullsFirst(t *testing.T) {
	f := New("id", "v")
	f.AppendRow(map[string]Value{"id": String("b"), "v": Int(2)})
	f.AppendRow(map[string]Value{"id": String("a"), "v": Int(1)})
	f.AppendRow(map[string]Value{"v": Int(3)})

	sorted := f.SortBy("id")
	require.True(t, sorted.Value("id", 0).IsNull())
	require.Equal(t, "a", sorted.Value("id", 1).Str())
	require.Equal(t, "b", sorted.Value("id", 2).Str())
}

func TestConcatUnionsColumns(t *testing.T) {
	a := New("x")
	a.AppendRow(map[string]Value{"x": Int(1)})
	b := New("y")
	b.AppendRow(map[string]Value{"y": Int(2)})

	out := Concat(a, b)
	require.Equal(t, 2, out.Len())
	require.True(t, out.HasColumn("x"))
	require.True(t, out.HasColumn("y"))
	require.True(t, out.Value("y", 0).IsNull())
	require.Equal(t, int64(2), out.Value("y", 1).Int())
}

func TestValueCompareAcrossTypes(t *testing.T) {
	d1 := Time(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	d2 := Time(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Negative(t, d1.Compare(d2))
	require.Positive(t, d2.Compare(d1))
	require.Zero(t, d1.Compare(d1))
	require.Negative(t, Null().Compare(d1))
}

func TestReadCSVEmptyCellsAreNull(t *testing.T) {
	in := "project_id,quantity\nVCS1,100\nVCS2,\n"
	f, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
	require.Equal(t, "100", f.Value("quantity", 0).Str())
	require.True(t, f.Value("quantity", 1).IsNull())
}

func TestCSVRoundTrip(t *testing.T) {
	f := New("a", "b")
	f.AppendRow(map[string]Value{"a": String("x"), "b": Int(1)})
	f.AppendRow(map[string]Value{"a": String("y")})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())
	require.Equal(t, "x", back.Value("a", 0).Str())
	require.Equal(t, "1", back.Value("b", 0).Str())
	require.True(t, back.Value("b", 1).IsNull())
}

func TestSortedUnique(t *testing.T) {
	require.Equal(t, []string{"forest", "ghg-management"}, SortedUnique([]string{"ghg-management", "forest", "forest"}))
}
