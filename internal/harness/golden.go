package harness

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/treesync/internal/model"
)

// Snapshot captures the observable end state of a scenario run. It is
// serialized as canonical JSON so golden files compare byte for byte.
type Snapshot struct {
	Scenario  string
	Trace     []TraceEvent
	Revisions []model.Revision
	Trees     map[string][]model.Element
}

// toCanonicalMap converts the snapshot to the value types accepted by
// model.MarshalCanonical. Times are left out; ids and names identify
// everything.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = map[string]any{
			"step":    event.Step,
			"user":    event.User,
			"op":      event.Op,
			"outcome": event.Outcome,
		}
	}

	revisions := make([]any, len(s.Revisions))
	for i, rev := range s.Revisions {
		revisions[i] = map[string]any{
			"id":      rev.ID.String(),
			"message": rev.Message,
			"user":    rev.User,
		}
	}

	trees := make(map[string]any, len(s.Trees))
	for user, elements := range s.Trees {
		tree := make([]any, len(elements))
		for i, el := range elements {
			subs := make([]any, len(el.SubElementIDs))
			for j, id := range el.SubElementIDs {
				subs[j] = displayID(id)
			}
			tree[i] = map[string]any{
				"id":   displayID(el.ID),
				"name": el.Info.Name,
				"subs": subs,
			}
		}
		trees[user] = tree
	}

	return map[string]any{
		"scenario":  s.Scenario,
		"trace":     trace,
		"revisions": revisions,
		"trees":     trees,
	}
}

// MarshalCanonical returns the canonical JSON form of the snapshot.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return model.MarshalCanonical(s.toCanonicalMap())
}

// RunSnapshot executes a scenario and captures its snapshot.
func RunSnapshot(scenario *Scenario) (*Result, *Snapshot, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, nil, err
	}
	defer h.close()

	result := NewResult()
	h.execute(scenario, result)
	if err := h.evaluate(scenario, result); err != nil {
		return nil, nil, err
	}

	snapshot, err := h.snapshot(scenario, result)
	if err != nil {
		return nil, nil, err
	}
	return result, snapshot, nil
}

func (h *Harness) snapshot(scenario *Scenario, result *Result) (*Snapshot, error) {
	revisions, err := h.engine.ListRevisions(context.Background(), h.ec.ItemID, h.ec.VersionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot revisions: %w", err)
	}

	trees := make(map[string][]model.Element, len(scenario.Snapshot))
	for _, user := range scenario.Snapshot {
		tree, err := h.tree(as(user))
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", user, err)
		}
		trees[user] = tree
	}

	return &Snapshot{
		Scenario:  scenario.Name,
		Trace:     result.Trace,
		Revisions: revisions,
		Trees:     trees,
	}, nil
}

// tree walks the private tree from the root, returning the elements sorted
// by id. A user without the version has an empty tree.
func (h *Harness) tree(ctx context.Context) ([]model.Element, error) {
	root, err := h.engine.GetElement(ctx, h.ec, model.RootID)
	if model.CodeOf(err) == model.CodeElementMissing {
		return []model.Element{}, nil
	}
	if err != nil {
		return nil, err
	}

	elements := []model.Element{root}
	for queue := []model.ID{root.ID}; len(queue) > 0; queue = queue[1:] {
		subs, err := h.engine.ListElements(ctx, h.ec, queue[0])
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			elements = append(elements, sub)
			queue = append(queue, sub.ID)
		}
	}

	slices.SortFunc(elements, func(a, b model.Element) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return elements, nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, snapshot, err := RunSnapshot(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already captured snapshot against the golden
// file name.golden.
func AssertGolden(t *testing.T, name string, snapshot *Snapshot) error {
	t.Helper()

	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
