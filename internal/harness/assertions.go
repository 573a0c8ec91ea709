package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/treesync/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Step, event.User, event.Op, event.Outcome)
	}
	return buf.String()
}

// evaluate runs every assertion and records the failures in result.
// Only storage failures are returned as errors.
func (h *Harness) evaluate(scenario *Scenario, result *Result) error {
	for i, a := range scenario.Assertions {
		err := h.evaluateAssertion(a, result.Trace)
		if err == nil {
			continue
		}
		var ae *AssertionError
		if errors.As(err, &ae) {
			result.AddError(fmt.Sprintf("assertions[%d]: %s", i, ae.Error()))
			continue
		}
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}
	return nil
}

func (h *Harness) evaluateAssertion(a Assertion, trace []TraceEvent) error {
	switch a.Type {
	case AssertElement:
		return h.assertElement(a, trace)
	case AssertConflicts:
		return h.assertConflicts(a, trace)
	case AssertRevisions:
		return h.assertRevisions(a, trace)
	case AssertStatus:
		return h.assertStatus(a, trace)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func (h *Harness) assertElement(a Assertion, trace []TraceEvent) error {
	id := parseID(a.ID)
	el, err := h.engine.GetElement(as(a.User), h.ec, id)
	if model.CodeOf(err) == model.CodeElementMissing || model.CodeOf(err) == model.CodeVersionMissing {
		if a.Missing {
			return nil
		}
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("%s has element %s", a.User, a.ID),
			Actual:   "element not found",
			Trace:    trace,
		}
	}
	if err != nil {
		return err
	}
	if a.Missing {
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("%s has no element %s", a.User, a.ID),
			Actual:   fmt.Sprintf("element found with name %q", el.Info.Name),
			Trace:    trace,
		}
	}

	actual := map[string]string{
		"name":        el.Info.Name,
		"description": el.Info.Description,
		"namespace":   el.Namespace,
		"parent":      displayID(el.ParentID),
	}
	var mismatches []string
	for _, field := range sortedFields(a.Expect) {
		want := fmt.Sprint(a.Expect[field])
		if got := actual[field]; got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%q (want %q)", field, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("%s element %s matches %v", a.User, a.ID, a.Expect),
			Actual:   strings.Join(mismatches, ", "),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertConflicts(a Assertion, trace []TraceEvent) error {
	conflict, err := h.engine.GetItemVersionConflict(as(a.User), h.ec.ItemID, h.ec.VersionID)
	if err != nil {
		return err
	}
	count := len(conflict.Elements)
	if conflict.VersionData != nil {
		count++
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertConflicts,
			Expected: fmt.Sprintf("%s has %d conflicts", a.User, a.Count),
			Actual:   fmt.Sprintf("%d conflicts", count),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertRevisions(a Assertion, trace []TraceEvent) error {
	revisions, err := h.engine.ListRevisions(context.Background(), h.ec.ItemID, h.ec.VersionID)
	if err != nil {
		return err
	}
	if len(revisions) != a.Count {
		return &AssertionError{
			Type:     AssertRevisions,
			Expected: fmt.Sprintf("%d revisions", a.Count),
			Actual:   fmt.Sprintf("%d revisions", len(revisions)),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertStatus(a Assertion, trace []TraceEvent) error {
	status, err := h.engine.GetItemVersionStatus(as(a.User), h.ec.ItemID, h.ec.VersionID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(string(status.Status), a.Status) {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%s status %s", a.User, a.Status),
			Actual:   string(status.Status),
			Trace:    trace,
		}
	}
	return nil
}

func sortedFields(m map[string]any) []string {
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}
