package scenario

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

func TestTestdataScenariosPass(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := Load(path)
			require.NoError(t, err)

			trace, err := Run(context.Background(), sc)
			require.NoError(t, err, "trace:\n%s", trace)
			assert.Len(t, trace.Entries, len(sc.Steps))
			_, failed := trace.Failed()
			assert.False(t, failed)
		})
	}
}

func TestUpdateCycleOutcomes(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "07-update-cycle.yaml"))
	require.NoError(t, err)

	trace, err := Run(context.Background(), sc)
	require.NoError(t, err)

	var got []string
	for _, e := range trace.Entries {
		if e.Step.Kind() == KindCommit || e.Step.Kind() == KindSetContainer {
			got = append(got, e.Outcome)
		}
	}
	want := []string{
		"parent=outer",
		"reconcile:inner=focused inner-fallback reconcile:outer=none",
		"borrow:outer reconcile:outer=none",
		"release:outer=focused inner-fallback",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commit outcomes mismatch (-want +got):\n%s", diff)
	}

	var kinds []focus.ChangeKind
	for _, c := range trace.Changes {
		kinds = append(kinds, c.Kind)
	}
	if diff := cmp.Diff([]focus.ChangeKind{focus.ChangeReconcile, focus.ChangeBorrow, focus.ChangeRelease}, kinds); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedExpectationStopsRun(t *testing.T) {
	sc, err := Parse([]byte(`
name: wrong expectation
elements:
  - id: a
  - id: b
steps:
  - focus: a
  - expect_focus: b
  - focus: b
`))
	require.NoError(t, err)

	trace, err := Run(context.Background(), sc)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScenarioExpect))
	assert.Len(t, trace.Entries, 2)

	failed, ok := trace.Failed()
	require.True(t, ok)
	assert.Equal(t, 2, failed.Index)
	assert.Equal(t, "a", failed.Active)
	assert.Contains(t, trace.String(), "FAIL")
}

func TestExpectErrorMismatch(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "step succeeded",
			yaml: `
name: x
elements: [{id: panel}]
regions: [{id: panel, container: panel}]
steps:
  - reconcile: panel
    expect_error: PRECONDITION
`,
		},
		{
			name: "different code",
			yaml: `
name: x
elements: [{id: panel}]
regions: [{id: panel}]
steps:
  - reconcile: panel
    expect_error: INVALID_INPUT
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Run(context.Background(), sc)
			assert.True(t, errors.IsCode(err, errors.ErrCodeScenarioExpect), "got %v", err)
		})
	}
}

func TestUnknownReferencesFailTheStep(t *testing.T) {
	sc, err := Parse([]byte(`
name: typo
elements: [{id: panel}]
steps:
  - reconcile: pannel
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), sc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScenarioStep), "got %v", err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{name: "malformed", yaml: "steps: [", msg: "parsing scenario YAML"},
		{name: "unknown key", yaml: "name: x\nsteps:\n  - focuss: a\n", msg: "parsing scenario YAML"},
		{name: "no steps", yaml: "name: x\nelements: [{id: a}]\n", msg: "no steps"},
		{name: "empty step", yaml: "name: x\nsteps:\n  - {}\n", msg: "no action"},
		{name: "two actions", yaml: "name: x\nsteps:\n  - {focus: a, remove: a}\n", msg: "several actions"},
		{name: "duplicate element", yaml: "name: x\nelements: [{id: a}, {id: a}]\nsteps: [{blur: true}]\n", msg: "duplicate element"},
		{name: "body is reserved", yaml: "name: x\nelements: [{id: body}]\nsteps: [{blur: true}]\n", msg: "duplicate element"},
		{name: "duplicate region", yaml: "name: x\nregions: [{id: r}]\nsteps: [{create_region: {id: r}}]\n", msg: "duplicate region"},
		{name: "reconcile in pre-paint", yaml: "name: x\nsteps:\n  - commit: {pre_paint: [{reconcile: r}]}\n", msg: "pre-paint"},
		{name: "borrow without target", yaml: "name: x\nsteps:\n  - borrow: {region: r}\n", msg: "borrow needs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeScenarioParse), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSessionSteps(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "04-borrow-restore.yaml"))
	require.NoError(t, err)

	s, err := Start(sc)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Position())

	outer, ok := s.Region("outer")
	require.True(t, ok)
	inner, _ := s.Region("inner")
	assert.Same(t, outer, inner.Parent())
	assert.Equal(t, "inner", s.RegionName(inner))

	entry, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "original", entry.Active)

	entry, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "borrowed", entry.Outcome)
	assert.Equal(t, "inner-1", entry.Active)

	trace, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Done())
	assert.Len(t, trace.Entries, len(sc.Steps))

	_, err = s.Next(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeScenarioStep))
}

func TestRegionAttributesAreMirrored(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "05-borrow-saved-removed.yaml"))
	require.NoError(t, err)

	s, err := Start(sc)
	require.NoError(t, err)
	outer, _ := s.Document().Lookup("outer")
	fallback, _ := s.Document().Lookup("outer-fallback")
	assert.Equal(t, "outer", outer.Attr(focus.AttrRegion))
	assert.Equal(t, "0", fallback.Attr(focus.AttrFallback))

	s2, err := Start(sc, WithoutAttributes())
	require.NoError(t, err)
	outer2, _ := s2.Document().Lookup("outer")
	assert.Empty(t, outer2.Attrs())
}

func TestRunLogsSteps(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "01-fallback-to-registered.yaml"))
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logging.New(&buf)
	log.SetMinLevel(logging.LevelDebug)

	_, err = Run(context.Background(), sc, WithLogger(log))
	require.NoError(t, err)

	events, err := logging.ReadEvents(&buf)
	require.NoError(t, err)

	var steps, reconciles int
	for _, e := range events {
		switch {
		case e.Category == logging.CategoryScenario && e.EventType == "step":
			steps++
		case e.Category == logging.CategoryReconcile:
			reconciles++
			assert.NotEmpty(t, e.ManagerID)
		}
	}
	assert.Equal(t, len(sc.Steps), steps)
	assert.Equal(t, 1, reconciles)
}

func TestStepString(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{Step{Focus: "a"}, "focus a"},
		{Step{Append: &AppendStep{ID: "a"}}, "append body > a"},
		{Step{SetContainer: &ContainerRef{Region: "r"}}, "set_container r = <none>"},
		{Step{SetFallback: &FallbackRef{Region: "r", Order: 2, Ref: "b"}}, "set_fallback r[2] = b"},
		{Step{Borrow: &BorrowRef{Region: "r", Target: "t"}}, "borrow r -> t"},
		{Step{Commit: &CommitStep{
			PrePaint:   []Step{{Release: "r"}},
			PostCommit: []string{"r", "s"},
		}}, "commit [release r; reconcile r,s]"},
		{Step{Focus: "a", Blur: true}, "invalid step"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.String())
			assert.False(t, strings.Contains(tt.step.String(), "%"))
		})
	}
}
