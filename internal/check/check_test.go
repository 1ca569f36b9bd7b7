package check

import (
	"errors"
	"strings"
	"testing"

	"policygen/internal/policy"
)

func ruleByName(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range Rules() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("rule %s not registered", name)
	return Rule{}
}

func TestMarkedForOpFirst(t *testing.T) {
	rule := ruleByName(t, "marked-for-op-first")

	tests := []struct {
		name string
		pol  policy.Document
		want bool
	}{
		{
			name: "no filters at all",
			pol:  policy.Document{"name": "p1"},
			want: true,
		},
		{
			name: "no marked-for-op filter",
			pol: policy.Document{"name": "p1", "filters": []any{
				map[string]any{"type": "value"},
			}},
			want: true,
		},
		{
			name: "marked-for-op is first",
			pol: policy.Document{"name": "p1", "filters": []any{
				map[string]any{"type": "marked-for-op"},
				map[string]any{"type": "other"},
			}},
			want: true,
		},
		{
			name: "marked-for-op is not first",
			pol: policy.Document{"name": "p1", "filters": []any{
				map[string]any{"type": "other"},
				map[string]any{"type": "marked-for-op"},
			}},
			want: false,
		},
		{
			name: "marked-for-op nested in an or block",
			pol: policy.Document{"name": "p1", "filters": []any{
				map[string]any{"or": []any{
					map[string]any{"type": "marked-for-op"},
				}},
			}},
			want: false,
		},
		{
			name: "first filter not a mapping",
			pol: policy.Document{"name": "p1", "filters": []any{
				"running",
				map[string]any{"type": "marked-for-op"},
			}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Check(tt.pol); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMarkButNoTagFilter(t *testing.T) {
	rule := ruleByName(t, "mark-but-no-tag-filter")

	tests := []struct {
		name string
		pol  policy.Document
		want bool
	}{
		{
			name: "mark action without absent filter",
			pol: policy.Document{
				"name":    "p1",
				"filters": []any{map[string]any{"type": "value"}},
				"actions": []any{map[string]any{"type": "mark-for-op", "tag": "expiry"}},
			},
			want: false,
		},
		{
			name: "mark action with absent filter",
			pol: policy.Document{
				"name": "p1",
				"filters": []any{
					map[string]any{"tag:expiry": "absent"},
					map[string]any{"type": "value"},
				},
				"actions": []any{map[string]any{"type": "mark-for-op", "tag": "expiry"}},
			},
			want: true,
		},
		{
			name: "absent filter for a different tag",
			pol: policy.Document{
				"name":    "p1",
				"filters": []any{map[string]any{"tag:other": "absent"}},
				"actions": []any{map[string]any{"type": "mark-for-op", "tag": "expiry"}},
			},
			want: false,
		},
		{
			name: "no mark actions",
			pol: policy.Document{
				"name":    "p1",
				"filters": []any{map[string]any{"type": "value"}},
				"actions": []any{map[string]any{"type": "stop"}},
			},
			want: true,
		},
		{
			name: "non-mapping action entries are skipped",
			pol: policy.Document{
				"name":    "p1",
				"filters": []any{},
				"actions": []any{"stop"},
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Check(tt.pol); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMarkForOpBadMessage(t *testing.T) {
	rule := ruleByName(t, "mark-for-op-bad-message")

	tests := []struct {
		name string
		pol  policy.Document
		want bool
	}{
		{
			name: "message missing the parseable suffix",
			pol: policy.Document{"name": "p1", "actions": []any{
				map[string]any{"type": "mark-for-op", "message": "please delete"},
			}},
			want: false,
		},
		{
			name: "message with the parseable suffix",
			pol: policy.Document{"name": "p1", "actions": []any{
				map[string]any{"type": "mark-for-op", "message": "Will delete: {op}@{action_date}"},
			}},
			want: true,
		},
		{
			name: "no message field",
			pol: policy.Document{"name": "p1", "actions": []any{
				map[string]any{"type": "mark-for-op", "tag": "expiry"},
			}},
			want: true,
		},
		{
			name: "no actions",
			pol:  policy.Document{"name": "p1"},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Check(tt.pol); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidate_AggregatesAllFailures(t *testing.T) {
	bad := policy.Document{
		"name": "bad-policy",
		"filters": []any{
			map[string]any{"type": "other"},
			map[string]any{"type": "marked-for-op"},
		},
		"actions": []any{
			map[string]any{"type": "mark-for-op", "tag": "expiry", "message": "nope"},
		},
	}
	good := policy.Document{
		"name":    "good-policy",
		"filters": []any{map[string]any{"type": "value"}},
		"actions": []any{map[string]any{"type": "stop"}},
	}

	result := Validate([]policy.Document{bad, good})
	if result.Passed {
		t.Fatal("expected validation to fail")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected failures for one policy, got %v", result.Failures)
	}
	// all three rules fail for the bad policy, in registry order
	descs := result.Failures["bad-policy"]
	if len(descs) != 3 {
		t.Fatalf("expected 3 failed rules, got %d: %v", len(descs), descs)
	}
	if !strings.Contains(descs[0], "not the first filter") {
		t.Errorf("unexpected first failure: %s", descs[0])
	}
}

func TestValidate_AllPass(t *testing.T) {
	pol := policy.Document{
		"name":    "p1",
		"filters": []any{map[string]any{"type": "value"}},
		"actions": []any{map[string]any{"type": "stop"}},
	}
	result := Validate([]policy.Document{pol})
	if !result.Passed {
		t.Fatalf("expected validation to pass, got %v", result.Failures)
	}
	if result.Err() != nil {
		t.Errorf("expected nil error for passing result, got %v", result.Err())
	}
	if result.Report() != "" {
		t.Errorf("expected empty report, got %q", result.Report())
	}
}

func TestResult_ReportSortedByPolicyName(t *testing.T) {
	result := Result{
		Passed: false,
		Failures: map[string][]string{
			"zeta":  {"rule one."},
			"alpha": {"rule one.", "rule two."},
		},
	}
	report := result.Report()
	if !strings.HasPrefix(report, "alpha\n") {
		t.Errorf("expected report to start with alpha, got:\n%s", report)
	}
	if strings.Index(report, "alpha") > strings.Index(report, "zeta") {
		t.Errorf("expected alpha before zeta:\n%s", report)
	}
}

func TestResult_Err(t *testing.T) {
	result := Result{Passed: false, Failures: map[string][]string{"p1": {"rule."}}}
	if !errors.Is(result.Err(), ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed, got %v", result.Err())
	}
}
