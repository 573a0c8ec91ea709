package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/testutil"
)

// rootAlias names the version data element in scenario files.
const rootAlias = "root"

// outcomeError is the outcome of a step that failed without an error code.
const outcomeError = "ERROR"

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and revision ids.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	ec     model.ElementContext
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create fresh in-memory database and engine
//  2. Execute steps, checking each against its expect clause
//  3. Evaluate assertions on the final state
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	h.execute(scenario, result)
	if err := h.evaluate(scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	eng := engine.New(st,
		engine.WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
		engine.WithRevisionIDs(testutil.NewSequenceGenerator("rev")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	return &Harness{
		store:  st,
		engine: eng,
		ec: model.ElementContext{
			ItemID:    model.ID(scenario.Item),
			VersionID: model.ID(scenario.Version),
		},
	}, nil
}

func (h *Harness) close() {
	h.store.Close()
}

// as returns a context acting as user.
func as(user string) context.Context {
	return model.WithSession(context.Background(), model.Session{UserID: user})
}

// execute runs every step. A failed expectation is recorded and execution
// continues, so the trace always covers the whole scenario.
func (h *Harness) execute(scenario *Scenario, result *Result) {
	for i, step := range scenario.Steps {
		outcome, err := h.executeStep(as(step.User), step)
		event := TraceEvent{Step: i + 1, User: step.User, Op: step.Op, Outcome: OutcomeOK}
		if err != nil {
			event.Outcome = outcomeOf(err)
		}
		result.AddTrace(event)

		for _, problem := range checkExpect(step, outcome, err) {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", i+1, step.User, step.Op, problem))
		}
	}
}

func outcomeOf(err error) string {
	if code := model.CodeOf(err); code != "" {
		return code
	}
	return outcomeError
}

// stepOutcome carries the result flags an expect clause can check.
type stepOutcome struct {
	conflicted *bool
	published  *bool
}

func flag(b bool) *bool { return &b }

func checkExpect(step Step, out stepOutcome, err error) []string {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{}
	}

	if want.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", want.Error)}
		}
		if got := outcomeOf(err); got != want.Error {
			return []string{fmt.Sprintf("expected error %s, got %s: %v", want.Error, got, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var problems []string
	if want.Conflicted != nil {
		if out.conflicted == nil {
			problems = append(problems, "conflicted does not apply to this op")
		} else if *out.conflicted != *want.Conflicted {
			problems = append(problems, fmt.Sprintf("expected conflicted=%t, got %t", *want.Conflicted, *out.conflicted))
		}
	}
	if want.Published != nil {
		if out.published == nil {
			problems = append(problems, "published does not apply to this op")
		} else if *out.published != *want.Published {
			problems = append(problems, fmt.Sprintf("expected published=%t, got %t", *want.Published, *out.published))
		}
	}
	return problems
}

func (h *Harness) executeStep(ctx context.Context, step Step) (stepOutcome, error) {
	e, ec := h.engine, h.ec
	args := step.Args

	switch step.Op {
	case OpCreateVersion:
		_, err := e.CreateItemVersion(ctx, ec.ItemID, argID(args, "base"), ec.VersionID, versionData(args))
		return stepOutcome{}, err
	case OpUpdateVersion:
		return stepOutcome{}, e.UpdateItemVersion(ctx, ec.ItemID, ec.VersionID, versionData(args))
	case OpDeleteVersion:
		return stepOutcome{}, e.DeleteItemVersion(ctx, ec.ItemID, ec.VersionID)
	case OpDeleteItem:
		return stepOutcome{}, e.DeleteItem(ctx, ec.ItemID)

	case OpCreateElement:
		el := model.Element{ID: argID(args, "id"), ParentID: argID(args, "parent")}
		applyElementArgs(&el, args)
		_, err := e.CreateElement(ctx, ec, el)
		return stepOutcome{}, err
	case OpUpdateElement:
		el, err := e.GetElement(ctx, ec, argID(args, "id"))
		if err != nil {
			return stepOutcome{}, err
		}
		applyElementArgs(&el, args)
		_, err = e.UpdateElement(ctx, ec, el)
		return stepOutcome{}, err
	case OpDeleteElement:
		return stepOutcome{}, e.DeleteElement(ctx, ec, argID(args, "id"))

	case OpPublish:
		res, err := e.Publish(ctx, ec.ItemID, ec.VersionID, argString(args, "message"))
		return stepOutcome{published: flag(res.Published())}, err
	case OpSync:
		res, err := e.Sync(ctx, ec.ItemID, ec.VersionID)
		return stepOutcome{conflicted: flag(res.Conflicted)}, err
	case OpForceSync:
		res, err := e.ForceSync(ctx, ec.ItemID, ec.VersionID)
		return stepOutcome{conflicted: flag(res.Conflicted)}, err
	case OpRevert:
		_, err := e.Revert(ctx, ec.ItemID, ec.VersionID, argID(args, "revision"))
		return stepOutcome{}, err
	case OpResolve:
		resolution := model.Resolution(strings.ToUpper(argString(args, "resolution")))
		res, err := e.ResolveElementConflict(ctx, ec, argID(args, "id"), resolution)
		return stepOutcome{conflicted: flag(res.Conflicted > 0)}, err
	}
	return stepOutcome{}, fmt.Errorf("unknown op %q", step.Op)
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// argID reads an element, version or revision id; "root" names the version
// data element.
func argID(args map[string]any, key string) model.ID {
	return parseID(argString(args, key))
}

func parseID(s string) model.ID {
	if s == rootAlias {
		return model.RootID
	}
	return model.ID(s)
}

func displayID(id model.ID) string {
	if id == model.RootID {
		return rootAlias
	}
	return id.String()
}

func versionData(args map[string]any) engine.ItemVersionData {
	return engine.ItemVersionData{Info: model.Info{
		Name:        argString(args, "name"),
		Description: argString(args, "description"),
	}}
}

// applyElementArgs overrides the fields named in args.
func applyElementArgs(el *model.Element, args map[string]any) {
	if _, ok := args["name"]; ok {
		el.Info.Name = argString(args, "name")
	}
	if _, ok := args["description"]; ok {
		el.Info.Description = argString(args, "description")
	}
	if _, ok := args["namespace"]; ok {
		el.Namespace = argString(args, "namespace")
	}
}
