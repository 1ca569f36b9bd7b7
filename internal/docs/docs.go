package docs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"policygen/internal/config"
	"policygen/internal/policy"
)

// AccountMaps holds, per account name, the per-region policy maps the
// compiler assembled (region name -> policy name -> document).
type AccountMaps map[string]map[string]map[string]policy.Document

// PoliciesTable renders the grid-format cross-reference of every policy:
// name, which account(s)/region(s) carry it, and its description. An account
// carrying the policy in all of its regions collapses to the bare account
// name; a policy carried by every account shows an empty membership cell.
func PoliciesTable(maps AccountMaps, accounts []config.Account, environ []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("this page built %s at %s\n\n", buildDescription(environ), timestr()))

	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Policy Name", "Account(s) / Region(s)", "Description/Comment"})
	table.SetRowLine(true)
	table.SetAutoWrapText(false)
	for _, row := range tableData(maps, accounts) {
		table.Append(row)
	}
	table.Render()
	return sb.String()
}

// tableData builds the sorted [name, memberships, description] rows.
func tableData(maps AccountMaps, accounts []config.Account) [][]string {
	acctNames := make([]string, 0, len(accounts))
	acctRegions := make(map[string][]string, len(accounts))
	for _, a := range accounts {
		acctNames = append(acctNames, a.AccountName)
		regions := append([]string(nil), a.Regions...)
		sort.Strings(regions)
		acctRegions[a.AccountName] = regions
	}
	sort.Strings(acctNames)

	// per account, the regions each policy appears in
	membership := make(map[string]map[string][]string)
	descriptions := make(map[string]string)
	for acct, regionMaps := range maps {
		membership[acct] = make(map[string][]string)
		for region, policies := range regionMaps {
			for name, doc := range policies {
				membership[acct][name] = append(membership[acct][name], region)
				descriptions[name] = doc.Comment()
			}
		}
	}

	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]string
	for _, name := range names {
		var memberships []string
		for _, acct := range acctNames {
			regions := append([]string(nil), membership[acct][name]...)
			sort.Strings(regions)
			if len(regions) == 0 {
				continue
			}
			if equalStrings(regions, acctRegions[acct]) {
				memberships = append(memberships, acct)
			} else {
				memberships = append(memberships, fmt.Sprintf("%s (%s)", acct, strings.Join(regions, " ")))
			}
		}
		cell := strings.Join(memberships, " ")
		if equalStrings(memberships, acctNames) {
			cell = ""
		}
		rows = append(rows, []string{name, cell, descriptions[name]})
	}
	return rows
}

// RegionsList renders the per-account region list.
func RegionsList(accounts []config.Account) string {
	var sb strings.Builder
	for _, a := range accounts {
		sb.WriteString(fmt.Sprintf("  * %s (%d)\n\n", a.AccountName, a.AccountID))
		for _, r := range a.Regions {
			sb.WriteString(fmt.Sprintf("    * %s\n", r))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// timestr is a variable so tests can pin the timestamp.
var timestr = func() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// buildDescription describes where the docs were built: the CI job when the
// usual CI environment variables are present, "locally" otherwise.
func buildDescription(environ []string) string {
	env := make(map[string]string)
	for _, entry := range environ {
		if idx := strings.Index(entry, "="); idx != -1 {
			env[entry[:idx]] = entry[idx+1:]
		}
	}
	if env["JOB_NAME"] == "" && env["BUILD_NUMBER"] == "" {
		return "locally"
	}
	return fmt.Sprintf("by %s %s (%s)", env["JOB_NAME"], env["BUILD_NUMBER"], env["BUILD_URL"])
}
