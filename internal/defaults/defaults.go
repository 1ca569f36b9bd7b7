package defaults

import (
	"reflect"

	"policygen/internal/config"
	"policygen/internal/merge"
	"policygen/internal/policy"
)

// Apply merges pol onto a deep copy of def, then layers the mandatory
// cross-cutting behavior: the Component tag used downstream for orphan
// detection, a guaranteed actions sequence, and the always-notify action.
// Neither input is mutated.
func Apply(def, pol policy.Document, notify *config.AlwaysNotify) (policy.Document, error) {
	base := def.Clone()
	if base == nil {
		base = policy.Document{}
	}
	update := pol.Clone()

	merged, err := merge.Merge(base, update, pol.Name(), nil)
	if err != nil {
		return nil, err
	}
	conf := policy.Document(merged)

	if mode := conf.Mode(); mode != nil {
		if t, _ := mode["type"].(string); t == "periodic" {
			if _, ok := mode["tags"]; !ok {
				mode["tags"] = map[string]any{}
			}
			if tags, ok := mode["tags"].(map[string]any); ok {
				// default tag keys the policy did not set itself
				if dmode := def.Mode(); dmode != nil {
					if dtags, ok := dmode["tags"].(map[string]any); ok {
						for k, v := range dtags {
							if _, present := tags[k]; !present {
								tags[k] = policy.CloneValue(v)
							}
						}
					}
				}
				// the Lambda function's Component tag is how cleanup
				// policies recognize which provisioned resources are
				// still backed by a policy
				tags["Component"] = pol.Name()
			}
		}
	}

	if _, ok := conf["actions"]; !ok {
		conf["actions"] = []any{}
	}

	injectAlwaysNotify(conf, notify)
	return conf, nil
}

// injectAlwaysNotify ensures the policy carries at least one notify action
// with the configured transport and recipients. The first notify action with
// a matching transport (in declaration order) receives the union of its own
// and the desired recipients; if none matches, a new notify action is
// appended. A nil configuration leaves the policy unchanged.
func injectAlwaysNotify(conf policy.Document, desired *config.AlwaysNotify) {
	if desired == nil {
		return
	}
	actions := conf.Actions()
	for _, a := range actions {
		action, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := action["type"].(string); t != "notify" {
			continue
		}
		if !transportMatches(action["transport"], desired.Transport) {
			continue
		}
		to, _ := action["to"].([]any)
		for _, addr := range desired.To {
			if !containsString(to, addr) {
				to = append(to, addr)
			}
		}
		action["to"] = to
		return
	}
	conf["actions"] = append(actions, notifyAction(desired))
}

func notifyAction(desired *config.AlwaysNotify) map[string]any {
	to := make([]any, len(desired.To))
	for i, addr := range desired.To {
		to[i] = addr
	}
	return map[string]any{
		"type":      "notify",
		"transport": policy.CloneValue(mapToAny(desired.Transport)),
		"to":        to,
	}
}

func transportMatches(actual any, desired map[string]any) bool {
	if actual == nil {
		actual = map[string]any{}
	}
	return reflect.DeepEqual(actual, mapToAny(desired))
}

// mapToAny normalizes a typed transport map to the plain map shape YAML
// unmarshaling produces, so deep equality lines up.
func mapToAny(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func containsString(seq []any, s string) bool {
	for _, e := range seq {
		if v, ok := e.(string); ok && v == s {
			return true
		}
	}
	return false
}
