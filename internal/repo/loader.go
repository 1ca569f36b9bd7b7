package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"policygen/internal/policy"
)

// ErrNameMismatch indicates a policy file whose declared name disagrees with
// the name derived from its filename. The "defaults" document is exempt.
var ErrNameMismatch = errors.New("policy name does not match file name")

// SharedScope is the directory holding policies shared by every account.
const SharedScope = "all_accounts"

// DefaultsFile is the defaults document filename under the policies root.
const DefaultsFile = "defaults.yml"

// Loader reads policy fragment documents from a policies directory tree:
//
//	<Dir>/defaults.yml
//	<Dir>/<scope>/common/*.yml
//	<Dir>/<scope>/<region>/*.yml
//
// where scope is all_accounts or an account name.
type Loader struct {
	Dir string
	Log *zap.SugaredLogger
}

// ReadDefaults loads the global defaults document.
func (l *Loader) ReadDefaults() (policy.Document, error) {
	return readYAMLFile(filepath.Join(l.Dir, DefaultsFile))
}

// ReadScope loads one scope directory and returns, per region, the policy
// map built by layering the region subdirectory over common. Layering is a
// key-level union: a region file replaces a same-named common file wholesale.
func (l *Loader) ReadScope(scope string, regions []string) (map[string]map[string]policy.Document, error) {
	common, err := l.readPolicies(filepath.Join(scope, "common"))
	if err != nil {
		return nil, err
	}
	byRegion := make(map[string]map[string]policy.Document, len(regions))
	for _, region := range regions {
		regional, err := l.readPolicies(filepath.Join(scope, region))
		if err != nil {
			return nil, err
		}
		merged := make(map[string]policy.Document, len(common)+len(regional))
		for name, doc := range common {
			merged[name] = doc
		}
		for name, doc := range regional {
			merged[name] = doc
		}
		byRegion[region] = merged
	}
	return byRegion, nil
}

// readPolicies loads every .yml policy file from a subdirectory of the
// policies root, keyed by filename stem. A missing directory contributes an
// empty set: repositories may omit per-region or per-account overrides
// entirely.
func (l *Loader) readPolicies(subdir string) (map[string]policy.Document, error) {
	dir := filepath.Join(l.Dir, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]policy.Document{}, nil
		}
		return nil, fmt.Errorf("failed to read policy directory %s: %w", dir, err)
	}

	docs := make(map[string]policy.Document)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		name := strings.SplitN(entry.Name(), ".", 2)[0]
		doc, err := readYAMLFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if name != "defaults" && doc.Name() != name {
			return nil, fmt.Errorf("policy file %s contains policy with name %q: %w",
				entry.Name(), doc.Name(), ErrNameMismatch)
		}
		docs[name] = doc
	}
	if l.Log != nil {
		l.Log.Infow("loaded policies", "dir", subdir, "count", len(docs), "names", sortedNames(docs))
	}
	return docs, nil
}

func readYAMLFile(path string) (policy.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	// Unmarshal into a plain map: decoding into the named Document type
	// would make yaml.v3 type every nested mapping as Document too, which
	// breaks the map[string]any assertions used throughout the module.
	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return policy.Document(doc), nil
}

func sortedNames(docs map[string]policy.Document) []string {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
