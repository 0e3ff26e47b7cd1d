// Package beneficiary shells out to the external name-harmonization
// tool. Retirement beneficiary free text is clustered by the tool into
// a merged_beneficiary column, which lands on the credits table as
// retirement_beneficiary_harmonized.
package beneficiary

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/offsetsdb/offsetsdb/pkg/configs"
	"github.com/offsetsdb/offsetsdb/pkg/frame"
)

const mergedColumn = "merged_beneficiary"

// HarmonizedColumn is the credits column the tool's output lands on.
const HarmonizedColumn = "retirement_beneficiary_harmonized"

// CommandError reports a failed tool invocation with its captured
// output for diagnosis.
type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("beneficiary tool %q failed: %v\nstdout: %s\nstderr: %s",
		strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stdout), strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error { return e.Err }

// Harmonizer drives the external clustering tool against ephemeral
// per-run projects.
type Harmonizer struct {
	log         *slog.Logger
	binary      string
	mappingPath string
}

// New returns a Harmonizer invoking binary with the alias-mapping file
// at mappingPath.
func New(log *slog.Logger, binary, mappingPath string) *Harmonizer {
	return &Harmonizer{log: log, binary: binary, mappingPath: mappingPath}
}

// Harmonize runs the tool over the frame's beneficiary columns and adds
// the harmonized column. Registries without beneficiary metadata for
// the download type, and empty frames, pass through without invoking
// the tool.
func (h *Harmonizer) Harmonize(ctx context.Context, f *frame.Frame, registryName, downloadType string) (*frame.Frame, error) {
	columns, err := configs.BeneficiaryColumns(registryName, downloadType)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		return f, nil
	}
	if f.Len() == 0 {
		h.log.Debug("skipping beneficiary harmonization of empty input",
			"registry", registryName, "download_type", downloadType)
		return f, nil
	}

	input, err := os.CreateTemp("", "beneficiary-in-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(input.Name())
	if err := frame.WriteCSV(input, f); err != nil {
		input.Close()
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := input.Close(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot: %w", err)
	}

	project := fmt.Sprintf("offsetsdb-%s-%s-%d", registryName, downloadType, time.Now().UnixNano())
	if _, err := h.run(ctx, "import", "csv", input.Name(), "--projectName", project); err != nil {
		return nil, err
	}
	defer func() {
		// Best effort cleanup of the ephemeral project.
		if _, err := h.run(context.WithoutCancel(ctx), "delete", project); err != nil {
			h.log.Warn("failed to delete ephemeral project", "project", project, "error", err)
		}
	}()

	if _, err := h.run(ctx, "info", project); err != nil {
		return nil, err
	}
	if _, err := h.run(ctx, "transform", project, h.mappingPath); err != nil {
		return nil, err
	}

	output, err := os.CreateTemp("", "beneficiary-out-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	output.Close()
	defer os.Remove(output.Name())
	if _, err := h.run(ctx, "export", "csv", project, "--output", output.Name()); err != nil {
		return nil, err
	}

	exported, err := os.Open(output.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer exported.Close()
	result, err := frame.ReadCSV(exported)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if !result.HasColumn(mergedColumn) {
		return nil, fmt.Errorf("export is missing the %s column", mergedColumn)
	}
	if result.Len() != f.Len() {
		return nil, fmt.Errorf("export has %d rows, expected %d", result.Len(), f.Len())
	}

	out := f.Copy()
	out.SetColumn(HarmonizedColumn, result.Column(mergedColumn))
	return out, nil
}

func (h *Harmonizer) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, h.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	h.log.Debug("running beneficiary tool", "args", args)
	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Args:   append([]string{h.binary}, args...),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.String(), nil
}
