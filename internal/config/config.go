package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AlwaysNotify describes the mandatory notification every compiled policy
// must carry: a transport (queue, email, ...) and a recipient list.
type AlwaysNotify struct {
	Transport map[string]any `yaml:"transport"`
	To        []string       `yaml:"to"`
}

// Mailer holds the c7n-mailer settings referenced by output macros.
type Mailer struct {
	QueueURL string `yaml:"queue_url"`
}

// Account is the configuration for one account in the config file.
type Account struct {
	AccountName        string        `yaml:"account_name"`
	AccountID          int64         `yaml:"account_id"`
	Regions            []string      `yaml:"regions"`
	OutputS3BucketName string        `yaml:"output_s3_bucket_name"`
	CustodianLogGroup  string        `yaml:"custodian_log_group"`
	DeadLetterQueueARN string        `yaml:"dead_letter_queue_arn"`
	RoleARN            string        `yaml:"role_arn"`
	Mailer             Mailer        `yaml:"mailer_config"`
	AlwaysNotify       *AlwaysNotify `yaml:"always_notify,omitempty"`
}

// LoadAll reads the config file: a YAML list of account configurations.
func LoadAll(path string) ([]Account, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var accounts []Account
	if err := yaml.Unmarshal(content, &accounts); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	for i, a := range accounts {
		if a.AccountName == "" {
			return nil, fmt.Errorf("account at index %d: missing required field 'account_name'", i)
		}
		if len(a.Regions) == 0 {
			return nil, fmt.Errorf("account '%s': missing required field 'regions'", a.AccountName)
		}
	}
	return accounts, nil
}

// Load reads the config file and selects one account by name.
func Load(path, accountName string) (Account, error) {
	accounts, err := LoadAll(path)
	if err != nil {
		return Account{}, err
	}
	for _, a := range accounts {
		if a.AccountName == accountName {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("account '%s' not found in %s", accountName, path)
}

// ListAccounts returns all account names in file order.
func ListAccounts(path string) ([]string, error) {
	accounts, err := LoadAll(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.AccountName
	}
	return names, nil
}
