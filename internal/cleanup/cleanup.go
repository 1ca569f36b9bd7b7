package cleanup

import "policygen/internal/policy"

// Policy names of the two synthesized cleanup policies. Both exclude
// themselves and each other so that synthesis never flags its own output as
// orphaned.
const (
	LambdaPolicyName = "c7n-cleanup-lambda"
	CWEPolicyName    = "c7n-cleanup-cwe"
)

// rulePrefix is the naming prefix the policy engine uses for the event rule
// it provisions per policy.
const rulePrefix = "custodian-"

const notifyRecipient = "MAN-ReleaseEngineering@manheim.com"

// Synthesize derives the two cleanup policies from the names of the region's
// compiled policies. The engine provisions one Lambda function and one event
// rule per policy but never deletes them when a policy is removed; the
// synthesized policies negative-match every known policy name, so anything
// left over is an orphan worth alerting on.
func Synthesize(policyNames []string) []policy.Document {
	lambdaCleanup := policy.Document{
		"name":     LambdaPolicyName,
		"comment":  "Find and alert on orphaned c7n Lambda functions",
		"resource": "lambda",
		"actions": []any{
			map[string]any{
				"type": "notify",
				"violation_desc": "The following cloud-custodian Lambda " +
					"functions appear to be orphaned",
				"action_desc": "and should probably be deleted",
				"subject": "[cloud-custodian {{ account }}] Orphaned " +
					"cloud-custodian Lambda funcs in {{ region }}",
				"to": []any{notifyRecipient},
			},
		},
		"filters": []any{
			map[string]any{"tag:Project": "cloud-custodian"},
			map[string]any{"tag:Component": "present"},
			componentNotEqual(LambdaPolicyName),
			componentNotEqual(CWEPolicyName),
		},
	}
	cweCleanup := policy.Document{
		"name":     CWEPolicyName,
		"comment":  "Find and alert on orphaned c7n CloudWatch Events",
		"resource": "event-rule",
		"actions": []any{
			map[string]any{
				"type": "notify",
				"violation_desc": "The following cloud-custodian CloudWatch " +
					"Event rules appear to be orphaned",
				"action_desc": "and should probably be deleted",
				"subject": "[cloud-custodian {{ account }}] Orphaned " +
					"cloud-custodian CW Event rules in {{ region }}",
				"to": []any{notifyRecipient},
			},
		},
		"filters": []any{
			map[string]any{
				"type":  "value",
				"key":   "Name",
				"op":    "glob",
				"value": rulePrefix + "*",
			},
			ruleNameNotEqual(LambdaPolicyName),
			ruleNameNotEqual(CWEPolicyName),
		},
	}

	for _, name := range policyNames {
		lambdaCleanup["filters"] = append(lambdaCleanup.Filters(), componentNotEqual(name))
		cweCleanup["filters"] = append(cweCleanup.Filters(), ruleNameNotEqual(name))
	}
	return []policy.Document{lambdaCleanup, cweCleanup}
}

func componentNotEqual(name string) map[string]any {
	return map[string]any{
		"type":  "value",
		"key":   "tag:Component",
		"op":    "ne",
		"value": name,
	}
}

func ruleNameNotEqual(name string) map[string]any {
	return map[string]any{
		"type":  "value",
		"key":   "Name",
		"op":    "ne",
		"value": rulePrefix + name,
	}
}
