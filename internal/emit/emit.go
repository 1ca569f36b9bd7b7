package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"policygen/internal/config"
)

// EnvMacroPrefix selects which environment variables contribute additional
// output macros: POLICYGEN_ENV_FOO=bar makes %%POLICYGEN_ENV_FOO%% expand
// to bar.
const EnvMacroPrefix = "POLICYGEN_ENV_"

// Writer serializes compiled per-region configs to custodian_<region>.yml
// files, substituting %%MACRO%% placeholders from account settings and the
// environment. Unmatched placeholders are left verbatim.
type Writer struct {
	Account config.Account
	Environ []string // "KEY=VALUE" entries, as from os.Environ()
	OutDir  string
	Log     *zap.SugaredLogger
}

// Emit writes the compiled config for one region.
func (w *Writer) Emit(region string, compiled map[string]any) error {
	data, err := yaml.Marshal(compiled)
	if err != nil {
		return fmt.Errorf("cannot serialize config for region %s: %w", region, err)
	}
	out := Substitute(string(data), w.Macros(region))

	name := fmt.Sprintf("custodian_%s.yml", region)
	path := filepath.Join(w.OutDir, name)
	if w.Log != nil {
		w.Log.Infow("writing region policies", "region", region, "file", name)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// Macro is one placeholder/value replacement pair.
type Macro struct {
	Placeholder string
	Value       string
}

// Macros builds the replacement list for one region: the fixed account and
// region macros first, then any POLICYGEN_ENV_-prefixed environment
// variables in environ order.
func (w *Writer) Macros(region string) []Macro {
	macros := []Macro{
		{"%%BUCKET_NAME%%", w.Account.OutputS3BucketName},
		{"%%LOG_GROUP%%", w.Account.CustodianLogGroup},
		{"%%DLQ_ARN%%", w.Account.DeadLetterQueueARN},
		{"%%ROLE_ARN%%", w.Account.RoleARN},
		{"%%MAILER_QUEUE_URL%%", w.Account.Mailer.QueueURL},
		{"%%ACCOUNT_NAME%%", w.Account.AccountName},
		{"%%ACCOUNT_ID%%", strconv.FormatInt(w.Account.AccountID, 10)},
		{"%%AWS_REGION%%", region},
	}
	seen := make(map[string]bool)
	for _, entry := range w.Environ {
		idx := strings.Index(entry, "=")
		if idx == -1 {
			continue
		}
		key, value := entry[:idx], entry[idx+1:]
		if !strings.HasPrefix(key, EnvMacroPrefix) || seen[key] {
			continue
		}
		seen[key] = true
		macros = append(macros, Macro{"%%" + key + "%%", value})
	}
	return macros
}

// Substitute performs literal placeholder replacement. Placeholders with no
// macro stay in the output unchanged.
func Substitute(content string, macros []Macro) string {
	for _, m := range macros {
		content = strings.ReplaceAll(content, m.Placeholder, m.Value)
	}
	return content
}

// WriteFile writes an arbitrary output artifact (docs, region lists) under
// the output directory.
func (w *Writer) WriteFile(name, content string) error {
	path := filepath.Join(w.OutDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
