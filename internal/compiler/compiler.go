package compiler

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"policygen/internal/check"
	"policygen/internal/cleanup"
	"policygen/internal/config"
	"policygen/internal/defaults"
	"policygen/internal/policy"
	"policygen/internal/repo"
)

// Emitter serializes one region's compiled config. Implemented by
// emit.Writer; faked in tests.
type Emitter interface {
	Emit(region string, compiled map[string]any) error
}

// Compiler turns the scoped policy directories into one compiled config per
// region of the current account: shared policies layered under account
// policies, defaults applied per policy, cleanup policies synthesized and
// appended, the whole set validated, then emitted. Nothing is emitted for a
// region once any error or validation failure occurs.
type Compiler struct {
	Account  config.Account
	Accounts []config.Account // every account in the config file, for docs
	Loader   *repo.Loader
	Emitter  Emitter
	Log      *zap.SugaredLogger
}

// Maps is the per-account, per-region policy map set assembled by Run,
// returned for documentation rendering.
type Maps map[string]map[string]map[string]policy.Document

// Run compiles and emits every region of the current account.
func (c *Compiler) Run() (Maps, error) {
	def, err := c.Loader.ReadDefaults()
	if err != nil {
		return nil, err
	}

	shared, err := c.Loader.ReadScope(repo.SharedScope, regionUnion(c.Accounts))
	if err != nil {
		return nil, err
	}

	// layer each account's own policies over the shared set, per region
	accountMaps := make(Maps, len(c.Accounts))
	for _, acct := range c.Accounts {
		scoped, err := c.Loader.ReadScope(acct.AccountName, acct.Regions)
		if err != nil {
			return nil, err
		}
		byRegion := make(map[string]map[string]policy.Document, len(acct.Regions))
		for _, region := range acct.Regions {
			merged := make(map[string]policy.Document)
			for name, doc := range shared[region] {
				merged[name] = doc
			}
			for name, doc := range scoped[region] {
				merged[name] = doc
			}
			byRegion[region] = merged
		}
		accountMaps[acct.AccountName] = byRegion
	}

	current, ok := accountMaps[c.Account.AccountName]
	if !ok {
		return nil, fmt.Errorf("account '%s' not present in config", c.Account.AccountName)
	}
	for _, region := range c.Account.Regions {
		compiled, err := c.compileRegion(current[region], def, region)
		if err != nil {
			return nil, err
		}
		if err := c.Emitter.Emit(region, compiled); err != nil {
			return nil, err
		}
	}
	return accountMaps, nil
}

// compileRegion applies defaults to the region's policies in name order,
// appends the synthesized cleanup policies (also defaulted), and validates
// the full set.
func (c *Compiler) compileRegion(policies map[string]policy.Document, def policy.Document, region string) (map[string]any, error) {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make([]policy.Document, 0, len(names)+2)
	for _, name := range names {
		doc, err := defaults.Apply(def, policies[name], c.Account.AlwaysNotify)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, doc)
	}

	c.Log.Infow("generating c7n cleanup policies", "region", region)
	for _, pol := range cleanup.Synthesize(compiledNames(compiled)) {
		doc, err := defaults.Apply(def, pol, c.Account.AlwaysNotify)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, doc)
	}

	c.Log.Infow("checking policies for sanity and safety", "region", region, "count", len(compiled))
	result := check.Validate(compiled)
	if !result.Passed {
		c.Log.Errorw("some policies failed sanity/safety checks", "region", region)
		for _, line := range splitLines(result.Report()) {
			c.Log.Error(line)
		}
		return nil, result.Err()
	}
	c.Log.Infow("all policies passed sanity/safety checks", "region", region)

	docs := make([]any, len(compiled))
	for i, doc := range compiled {
		docs[i] = map[string]any(doc)
	}
	return map[string]any{"policies": docs}, nil
}

func compiledNames(policies []policy.Document) []string {
	names := make([]string, len(policies))
	for i, pol := range policies {
		names[i] = pol.Name()
	}
	return names
}

// regionUnion returns every region configured for any account, in stable
// order, for loading the shared scope.
func regionUnion(accounts []config.Account) []string {
	seen := make(map[string]bool)
	var regions []string
	for _, a := range accounts {
		for _, r := range a.Regions {
			if !seen[r] {
				seen[r] = true
				regions = append(regions, r)
			}
		}
	}
	return regions
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
