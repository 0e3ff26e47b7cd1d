package beneficiary

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTool writes a shell script standing in for the harmonization
// binary. On export it copies the imported CSV and appends a
// merged_beneficiary column.
func fakeTool(t *testing.T, failOn string) string {
	t.Helper()
	dir := t.TempDir()
	state := filepath.Join(dir, "imported.csv")
	script := filepath.Join(dir, "tool")
	body := `#!/bin/sh
cmd="$1"
if [ "$cmd" = "` + failOn + `" ]; then
  echo "boom" >&2
  exit 1
fi
case "$cmd" in
import)
  cp "$3" "` + state + `"
  ;;
export)
  out="$5"
  awk 'NR==1 {print $0",merged_beneficiary"; next} {print $0",HARMONIZED"}' "` + state + `" > "$out"
  ;;
esac
exit 0
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	return script
}

func retirements(rows int) *frame.Frame {
	f := frame.New("project_id", "retirement_beneficiary")
	for i := 0; i < rows; i++ {
		f.AppendRow(map[string]frame.Value{
			"project_id":             frame.String("ACR123"),
			"retirement_beneficiary": frame.String("Some Airline, Inc."),
		})
	}
	return f
}

func TestHarmonizeAddsColumn(t *testing.T) {
	h := New(testLogger(), fakeTool(t, "never"), "mappings.json")
	out, err := h.Harmonize(context.Background(), retirements(2),
		registry.AmericanCarbonRegistry, registry.DownloadRetirements)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	require.True(t, out.HasColumn(HarmonizedColumn))
	require.Equal(t, "HARMONIZED", out.Value(HarmonizedColumn, 0).Str())
	require.Equal(t, "HARMONIZED", out.Value(HarmonizedColumn, 1).Str())
}

func TestHarmonizeEmptyInputSkipsTool(t *testing.T) {
	h := New(testLogger(), "/nonexistent/tool", "mappings.json")
	f := retirements(0)
	out, err := h.Harmonize(context.Background(), f,
		registry.AmericanCarbonRegistry, registry.DownloadRetirements)
	require.NoError(t, err)
	require.Same(t, f, out)
}

func TestHarmonizeUnmappedRegistryPassesThrough(t *testing.T) {
	h := New(testLogger(), "/nonexistent/tool", "mappings.json")
	f := retirements(3)
	out, err := h.Harmonize(context.Background(), f,
		registry.GlobalCarbonCouncil, registry.DownloadRetirements)
	require.NoError(t, err)
	require.Same(t, f, out)
}

func TestHarmonizeCommandError(t *testing.T) {
	h := New(testLogger(), fakeTool(t, "transform"), "mappings.json")
	_, err := h.Harmonize(context.Background(), retirements(1),
		registry.AmericanCarbonRegistry, registry.DownloadRetirements)
	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Contains(t, cmdErr.Stderr, "boom")
	require.Equal(t, "transform", cmdErr.Args[1])
}
