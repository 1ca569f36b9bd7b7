package check

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"policygen/internal/policy"
)

// ErrValidationFailed indicates that one or more policies failed sanity or
// safety checks. The failure report is complete: every rule runs against
// every policy before the run aborts.
var ErrValidationFailed = errors.New("policies failed sanity/safety checks")

// Rule is one sanity/safety predicate. Check returns true when the policy
// passes. Adding a rule means appending one entry to the registry below.
type Rule struct {
	Name  string
	Desc  string
	Check func(policy.Document) bool
}

// rules is the registry of built-in checks, run in declared order.
var rules = []Rule{
	{
		Name:  "marked-for-op-first",
		Desc:  "Policy includes a marked-for-op filter, but it is not the first filter.",
		Check: checkMarkedForOpFirst,
	},
	{
		Name:  "mark-but-no-tag-filter",
		Desc:  "Policy performs a mark action, but does not filter out resources already marked with that tag.",
		Check: checkMarkButNoTagFilter,
	},
	{
		Name:  "mark-for-op-bad-message",
		Desc:  `mark-for-op action has message that does not end with ": {op}@{action_date}" (will not be parsed by c7n and will be ignored).`,
		Check: checkMarkForOpBadMessage,
	},
}

// Rules returns the built-in rule registry in evaluation order.
func Rules() []Rule {
	return rules
}

// Result aggregates rule failures across a policy set. Validation is
// all-or-nothing: a single failing rule on a single policy fails the set.
type Result struct {
	Passed   bool
	Failures map[string][]string // policy name -> failed rule descriptions
}

// Validate runs every registered rule against every policy and collects all
// failures, grouped by policy name.
func Validate(policies []policy.Document) Result {
	failures := make(map[string][]string)
	for _, pol := range policies {
		for _, rule := range rules {
			if !rule.Check(pol) {
				failures[pol.Name()] = append(failures[pol.Name()], rule.Desc)
			}
		}
	}
	return Result{
		Passed:   len(failures) == 0,
		Failures: failures,
	}
}

// Report formats all failures, policies sorted by name, one indented line
// per failed rule. Empty for a passing result.
func (r Result) Report() string {
	if r.Passed {
		return ""
	}
	names := make([]string, 0, len(r.Failures))
	for name := range r.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name + "\n")
		for _, desc := range r.Failures[name] {
			sb.WriteString("\t" + desc + "\n")
		}
	}
	return sb.String()
}

// Err returns ErrValidationFailed (wrapped with the failure count) for a
// failing result, nil otherwise.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%d policies: %w", len(r.Failures), ErrValidationFailed)
}

// checkMarkedForOpFirst fails when a marked-for-op filter appears anywhere in
// the filters tree but is not the first top-level filter. A later
// marked-for-op filter is a latent bug: the engine silently short-circuits
// evaluation on whatever runs before it.
func checkMarkedForOpFirst(pol policy.Document) bool {
	filters := pol.Filters()
	if filters == nil {
		return true
	}
	if !mentionsType(filters, "marked-for-op") {
		return true
	}
	if len(filters) == 0 {
		return false
	}
	first, ok := filters[0].(map[string]any)
	if !ok {
		return false
	}
	t, _ := first["type"].(string)
	return t == "marked-for-op"
}

// checkMarkButNoTagFilter fails when a mark-for-op action is not paired with
// a filter requiring its tag to be absent. Without that filter the policy
// re-marks already-marked resources on every run.
func checkMarkButNoTagFilter(pol policy.Document) bool {
	filters := pol.Filters()
	if filters == nil {
		return true
	}
	actions := pol.Actions()
	if actions == nil {
		return true
	}
	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := action["type"].(string); t != "mark-for-op" {
			continue
		}
		tag, ok := action["tag"].(string)
		if !ok {
			continue
		}
		if !hasAbsentTagFilter(filters, tag) {
			return false
		}
	}
	return true
}

// checkMarkForOpBadMessage fails when a mark-for-op action declares a custom
// message that does not end with the literal suffix the engine parses back
// out when acting on the mark.
func checkMarkForOpBadMessage(pol policy.Document) bool {
	for _, a := range pol.Actions() {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := action["type"].(string); t != "mark-for-op" {
			continue
		}
		msg, ok := action["message"].(string)
		if !ok {
			continue
		}
		if !strings.HasSuffix(msg, ": {op}@{action_date}") {
			return false
		}
	}
	return true
}

// mentionsType reports whether any mapping anywhere in the value tree has the
// given "type" field, including inside nested and/or/not filter blocks.
func mentionsType(v any, typeName string) bool {
	switch val := v.(type) {
	case map[string]any:
		if t, _ := val["type"].(string); t == typeName {
			return true
		}
		for _, child := range val {
			if mentionsType(child, typeName) {
				return true
			}
		}
	case []any:
		for _, child := range val {
			if mentionsType(child, typeName) {
				return true
			}
		}
	}
	return false
}

func hasAbsentTagFilter(filters []any, tag string) bool {
	want := "tag:" + tag
	for _, f := range filters {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if len(m) != 1 {
			continue
		}
		if v, ok := m[want].(string); ok && v == "absent" {
			return true
		}
	}
	return false
}
