package docs

import (
	"strings"
	"testing"

	"policygen/internal/config"
	"policygen/internal/policy"
)

func testAccounts() []config.Account {
	return []config.Account{
		{AccountName: "dev", AccountID: 1, Regions: []string{"us-east-1", "us-west-2"}},
		{AccountName: "prod", AccountID: 2, Regions: []string{"us-east-1", "us-west-2"}},
	}
}

func doc(name, comment string) policy.Document {
	d := policy.Document{"name": name}
	if comment != "" {
		d["comment"] = comment
	}
	return d
}

func TestPoliciesTable_ListsPoliciesSorted(t *testing.T) {
	maps := AccountMaps{
		"dev": {
			"us-east-1": {"zeta": doc("zeta", "last"), "alpha": doc("alpha", "first")},
			"us-west-2": {"zeta": doc("zeta", "last"), "alpha": doc("alpha", "first")},
		},
		"prod": {
			"us-east-1": {"zeta": doc("zeta", "last"), "alpha": doc("alpha", "first")},
			"us-west-2": {"zeta": doc("zeta", "last"), "alpha": doc("alpha", "first")},
		},
	}

	out := PoliciesTable(maps, testAccounts(), nil)
	alphaIdx := strings.Index(out, "alpha")
	zetaIdx := strings.Index(out, "zeta")
	if alphaIdx == -1 || zetaIdx == -1 {
		t.Fatalf("expected both policies in table:\n%s", out)
	}
	if alphaIdx > zetaIdx {
		t.Errorf("expected alpha before zeta:\n%s", out)
	}
}

func TestPoliciesTable_UbiquitousPolicyHasEmptyMembership(t *testing.T) {
	everywhere := doc("everywhere", "runs everywhere")
	maps := AccountMaps{
		"dev": {
			"us-east-1": {"everywhere": everywhere},
			"us-west-2": {"everywhere": everywhere},
		},
		"prod": {
			"us-east-1": {"everywhere": everywhere},
			"us-west-2": {"everywhere": everywhere},
		},
	}

	rows := tableData(maps, testAccounts())
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %v", rows)
	}
	if rows[0][1] != "" {
		t.Errorf("expected empty membership cell for ubiquitous policy, got %q", rows[0][1])
	}
}

func TestPoliciesTable_PartialRegionMembership(t *testing.T) {
	partial := doc("partial", "east only")
	maps := AccountMaps{
		"dev": {
			"us-east-1": {"partial": partial},
		},
		"prod": {},
	}

	rows := tableData(maps, testAccounts())
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %v", rows)
	}
	if rows[0][1] != "dev (us-east-1)" {
		t.Errorf("expected region-qualified membership, got %q", rows[0][1])
	}
}

func TestPoliciesTable_FullAccountCollapses(t *testing.T) {
	d := doc("p", "desc")
	maps := AccountMaps{
		"dev": {
			"us-east-1": {"p": d},
			"us-west-2": {"p": d},
		},
		"prod": {},
	}

	rows := tableData(maps, testAccounts())
	if rows[0][1] != "dev" {
		t.Errorf("expected bare account name when all regions carry the policy, got %q", rows[0][1])
	}
}

func TestPoliciesTable_DescriptionFallback(t *testing.T) {
	maps := AccountMaps{
		"dev": {
			"us-east-1": {"nodesc": doc("nodesc", "")},
		},
		"prod": {},
	}

	rows := tableData(maps, testAccounts())
	if rows[0][2] != "unknown" {
		t.Errorf("expected unknown description, got %q", rows[0][2])
	}
}

func TestRegionsList(t *testing.T) {
	out := RegionsList(testAccounts())
	for _, want := range []string{"dev (1)", "prod (2)", "us-east-1", "us-west-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in region list:\n%s", want, out)
		}
	}
}

func TestBuildDescription(t *testing.T) {
	if got := buildDescription(nil); got != "locally" {
		t.Errorf("expected locally without CI env, got %q", got)
	}
	got := buildDescription([]string{"JOB_NAME=nightly", "BUILD_NUMBER=42", "BUILD_URL=https://ci/42"})
	if got != "by nightly 42 (https://ci/42)" {
		t.Errorf("unexpected build description %q", got)
	}
}
