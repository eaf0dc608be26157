// Package scenario describes focus situations in YAML and replays them
// against a document and a focus manager, step by step.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/regionfocus/pkg/errors"
)

// Body names the document body in element references.
const Body = "body"

// Scenario is a document, a set of regions and the steps to replay.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Elements    []ElementSpec `yaml:"elements"`
	Regions     []RegionSpec  `yaml:"regions,omitempty"`
	Steps       []Step        `yaml:"steps"`
}

// ElementSpec declares an element and its subtree. Top-level elements are
// appended to the body unless Detached is set.
type ElementSpec struct {
	ID       string        `yaml:"id"`
	Label    string        `yaml:"label,omitempty"`
	Detached bool          `yaml:"detached,omitempty"`
	Children []ElementSpec `yaml:"children,omitempty"`
}

// RegionSpec declares a region created before the first step. An empty
// Container leaves it unmounted.
type RegionSpec struct {
	ID        string         `yaml:"id"`
	Container string         `yaml:"container,omitempty"`
	Options   map[string]any `yaml:"options,omitempty"`
	Fallbacks []FallbackSpec `yaml:"fallbacks,omitempty"`
}

// FallbackSpec registers Ref at Order.
type FallbackSpec struct {
	Order int    `yaml:"order"`
	Ref   string `yaml:"ref"`
}

// Step is one scenario action. Exactly one action field must be set.
type Step struct {
	Focus         string        `yaml:"focus,omitempty"`
	Blur          bool          `yaml:"blur,omitempty"`
	Remove        string        `yaml:"remove,omitempty"`
	Append        *AppendStep   `yaml:"append,omitempty"`
	CreateRegion  *RegionSpec   `yaml:"create_region,omitempty"`
	SetContainer  *ContainerRef `yaml:"set_container,omitempty"`
	SetFallback   *FallbackRef  `yaml:"set_fallback,omitempty"`
	ClearFallback *FallbackRef  `yaml:"clear_fallback,omitempty"`
	Reconcile     string        `yaml:"reconcile,omitempty"`
	Borrow        *BorrowRef    `yaml:"borrow,omitempty"`
	Release       string        `yaml:"release,omitempty"`
	RemoveRegion  string        `yaml:"remove_region,omitempty"`
	Commit        *CommitStep   `yaml:"commit,omitempty"`
	ExpectFocus   string        `yaml:"expect_focus,omitempty"`
	ExpectNeutral bool          `yaml:"expect_neutral,omitempty"`

	// ExpectError makes the step pass only if it fails with this error code.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// AppendStep attaches ID under Parent, creating the element if needed.
type AppendStep struct {
	Parent string `yaml:"parent"`
	ID     string `yaml:"id"`
	Label  string `yaml:"label,omitempty"`
}

// ContainerRef assigns Container to Region. An empty Container unmounts.
type ContainerRef struct {
	Region    string `yaml:"region"`
	Container string `yaml:"container,omitempty"`
}

// FallbackRef targets one fallback slot of a region.
type FallbackRef struct {
	Region string `yaml:"region"`
	Order  int    `yaml:"order"`
	Ref    string `yaml:"ref,omitempty"`
}

// BorrowRef hands focus to Target on behalf of Region.
type BorrowRef struct {
	Region string `yaml:"region"`
	Target string `yaml:"target"`
}

// CommitStep runs one update cycle. PrePaint holds borrow and release steps;
// PostCommit lists regions to reconcile.
type CommitStep struct {
	PrePaint   []Step   `yaml:"pre_paint,omitempty"`
	PostCommit []string `yaml:"post_commit,omitempty"`
}

// Step kinds.
const (
	KindFocus         = "focus"
	KindBlur          = "blur"
	KindRemove        = "remove"
	KindAppend        = "append"
	KindCreateRegion  = "create_region"
	KindSetContainer  = "set_container"
	KindSetFallback   = "set_fallback"
	KindClearFallback = "clear_fallback"
	KindReconcile     = "reconcile"
	KindBorrow        = "borrow"
	KindRelease       = "release"
	KindRemoveRegion  = "remove_region"
	KindCommit        = "commit"
	KindExpectFocus   = "expect_focus"
	KindExpectNeutral = "expect_neutral"
)

// kinds lists every action field that is set.
func (s Step) kinds() []string {
	var out []string
	add := func(set bool, kind string) {
		if set {
			out = append(out, kind)
		}
	}
	add(s.Focus != "", KindFocus)
	add(s.Blur, KindBlur)
	add(s.Remove != "", KindRemove)
	add(s.Append != nil, KindAppend)
	add(s.CreateRegion != nil, KindCreateRegion)
	add(s.SetContainer != nil, KindSetContainer)
	add(s.SetFallback != nil, KindSetFallback)
	add(s.ClearFallback != nil, KindClearFallback)
	add(s.Reconcile != "", KindReconcile)
	add(s.Borrow != nil, KindBorrow)
	add(s.Release != "", KindRelease)
	add(s.RemoveRegion != "", KindRemoveRegion)
	add(s.Commit != nil, KindCommit)
	add(s.ExpectFocus != "", KindExpectFocus)
	add(s.ExpectNeutral, KindExpectNeutral)
	return out
}

// Kind returns the step's action, or "" if it is malformed.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// String renders the step in one line.
func (s Step) String() string {
	switch s.Kind() {
	case KindFocus:
		return "focus " + s.Focus
	case KindBlur:
		return "blur"
	case KindRemove:
		return "remove " + s.Remove
	case KindAppend:
		return fmt.Sprintf("append %s > %s", orBody(s.Append.Parent), s.Append.ID)
	case KindCreateRegion:
		return "create_region " + s.CreateRegion.ID
	case KindSetContainer:
		container := s.SetContainer.Container
		if container == "" {
			container = "<none>"
		}
		return fmt.Sprintf("set_container %s = %s", s.SetContainer.Region, container)
	case KindSetFallback:
		return fmt.Sprintf("set_fallback %s[%d] = %s", s.SetFallback.Region, s.SetFallback.Order, s.SetFallback.Ref)
	case KindClearFallback:
		return fmt.Sprintf("clear_fallback %s[%d]", s.ClearFallback.Region, s.ClearFallback.Order)
	case KindReconcile:
		return "reconcile " + s.Reconcile
	case KindBorrow:
		return fmt.Sprintf("borrow %s -> %s", s.Borrow.Region, s.Borrow.Target)
	case KindRelease:
		return "release " + s.Release
	case KindRemoveRegion:
		return "remove_region " + s.RemoveRegion
	case KindCommit:
		parts := make([]string, 0, len(s.Commit.PrePaint)+1)
		for _, pre := range s.Commit.PrePaint {
			parts = append(parts, pre.String())
		}
		if len(s.Commit.PostCommit) > 0 {
			parts = append(parts, "reconcile "+strings.Join(s.Commit.PostCommit, ","))
		}
		return "commit [" + strings.Join(parts, "; ") + "]"
	case KindExpectFocus:
		return "expect_focus " + s.ExpectFocus
	case KindExpectNeutral:
		return "expect_neutral"
	}
	return "invalid step"
}

func orBody(id string) string {
	if id == "" {
		return Body
	}
	return id
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScenarioParse, "reading scenario").
			WithContext("path", path)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScenarioParse, "loading scenario").
			WithContext("path", path)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScenarioParse, "parsing scenario YAML")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario's structure. References to elements and
// regions are resolved when the scenario runs, since steps may create them.
func (sc *Scenario) Validate() error {
	seen := map[string]bool{Body: true}
	var walk func(specs []ElementSpec) error
	walk = func(specs []ElementSpec) error {
		for _, el := range specs {
			if el.ID == "" {
				return errors.New(errors.ErrCodeScenarioParse, "element without id")
			}
			if seen[el.ID] {
				return errors.Newf(errors.ErrCodeScenarioParse, "duplicate element id %q", el.ID)
			}
			seen[el.ID] = true
			if err := walk(el.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(sc.Elements); err != nil {
		return err
	}

	regions := map[string]bool{}
	for _, r := range sc.Regions {
		if err := validateRegion(r, regions); err != nil {
			return err
		}
	}

	if len(sc.Steps) == 0 {
		return errors.New(errors.ErrCodeScenarioParse, "scenario has no steps")
	}
	for i, step := range sc.Steps {
		if err := validateStep(step, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeScenarioParse, "invalid step").
				WithContext("step", i+1)
		}
		if step.CreateRegion != nil {
			if err := validateRegion(*step.CreateRegion, regions); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRegion(r RegionSpec, seen map[string]bool) error {
	if r.ID == "" {
		return errors.New(errors.ErrCodeScenarioParse, "region without id")
	}
	if seen[r.ID] {
		return errors.Newf(errors.ErrCodeScenarioParse, "duplicate region id %q", r.ID)
	}
	seen[r.ID] = true
	for _, fb := range r.Fallbacks {
		if fb.Ref == "" {
			return errors.Newf(errors.ErrCodeScenarioParse, "region %q has a fallback without ref", r.ID)
		}
	}
	return nil
}

func validateStep(step Step, prePaint bool) error {
	kinds := step.kinds()
	switch len(kinds) {
	case 0:
		return errors.New(errors.ErrCodeScenarioParse, "step has no action")
	case 1:
	default:
		return errors.Newf(errors.ErrCodeScenarioParse, "step has several actions: %s", strings.Join(kinds, ", "))
	}

	kind := kinds[0]
	if prePaint && kind != KindBorrow && kind != KindRelease {
		return errors.Newf(errors.ErrCodeScenarioParse, "%s cannot run in the pre-paint phase", kind)
	}

	switch kind {
	case KindAppend:
		if step.Append.ID == "" {
			return errors.New(errors.ErrCodeScenarioParse, "append needs an id")
		}
	case KindSetContainer:
		if step.SetContainer.Region == "" {
			return errors.New(errors.ErrCodeScenarioParse, "set_container needs a region")
		}
	case KindSetFallback:
		if step.SetFallback.Region == "" || step.SetFallback.Ref == "" {
			return errors.New(errors.ErrCodeScenarioParse, "set_fallback needs a region and a ref")
		}
	case KindClearFallback:
		if step.ClearFallback.Region == "" {
			return errors.New(errors.ErrCodeScenarioParse, "clear_fallback needs a region")
		}
	case KindBorrow:
		if step.Borrow.Region == "" || step.Borrow.Target == "" {
			return errors.New(errors.ErrCodeScenarioParse, "borrow needs a region and a target")
		}
	case KindCommit:
		for _, pre := range step.Commit.PrePaint {
			if err := validateStep(pre, true); err != nil {
				return err
			}
		}
	}
	return nil
}
