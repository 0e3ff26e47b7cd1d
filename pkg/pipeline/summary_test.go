package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/offsetsdb/offsetsdb/pkg/frame"
	"github.com/offsetsdb/offsetsdb/pkg/registry"
	"github.com/offsetsdb/offsetsdb/pkg/transform"
)

func TestTabulate(t *testing.T) {
	credits := frame.New()
	credits.AppendRow(map[string]frame.Value{
		"registry":         frame.String(registry.Verra),
		"transaction_type": frame.String(transform.TransactionIssuance),
		"quantity":         frame.Int(100),
	})
	credits.AppendRow(map[string]frame.Value{
		"registry":         frame.String(registry.Verra),
		"transaction_type": frame.String(transform.TransactionRetirement),
		"quantity":         frame.Int(40),
	})
	credits.AppendRow(map[string]frame.Value{
		"registry":         frame.String(registry.GoldStandard),
		"transaction_type": frame.String("retirement/cancellation"),
		"quantity":         frame.Int(7),
	})

	verraProjects := frame.New()
	verraProjects.AppendRow(map[string]frame.Value{"project_id": frame.String("VCS1")})
	verraProjects.AppendRow(map[string]frame.Value{"project_id": frame.String("VCS2")})

	outputs := []*registryOutput{
		{registry: registry.Verra, projects: verraProjects},
		{registry: registry.GoldStandard, projects: frame.New()},
	}

	totals := tabulate(outputs, credits)
	require.Equal(t, 2, totals[registry.Verra].projects)
	require.Equal(t, int64(100), totals[registry.Verra].issued)
	require.Equal(t, int64(40), totals[registry.Verra].retired)
	require.Equal(t, int64(7), totals[registry.GoldStandard].retired,
		"combined retirement/cancellation counts as retired")
}
