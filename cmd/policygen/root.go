package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"policygen/internal/compiler"
	"policygen/internal/config"
	"policygen/internal/docs"
	"policygen/internal/emit"
	"policygen/internal/repo"
)

const version = "1.0.0"

type rootOptions struct {
	configPath  string
	policiesDir string
	outDir      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "policygen ACCOUNT_NAME",
		Short: "Generate custodian config files from a policy configuration directory",
		Long: "policygen compiles a tree of YAML policy fragments (global defaults, " +
			"cross-account shared policies, per-account and per-region overrides) " +
			"into one custodian config file per region, with cleanup policies " +
			"synthesized, safety checks applied and output macros substituted.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args[0], os.Environ())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "policygen.yml",
		"config file path")
	cmd.PersistentFlags().StringVar(&opts.policiesDir, "policies", "policies",
		"policies directory to compile")
	cmd.PersistentFlags().StringVar(&opts.outDir, "out", ".",
		"directory to write compiled configs into")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the policygen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "policygen %s\n", version)
		},
	}
}

func runGenerate(opts *rootOptions, accountName string, environ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	account, err := config.Load(opts.configPath, accountName)
	if err != nil {
		return err
	}
	accounts, err := config.LoadAll(opts.configPath)
	if err != nil {
		return err
	}
	logger.Infow("initialized policygen",
		"account", account.AccountName, "account_id", account.AccountID)

	writer := &emit.Writer{
		Account: account,
		Environ: environ,
		OutDir:  opts.outDir,
		Log:     logger,
	}
	comp := &compiler.Compiler{
		Account:  account,
		Accounts: accounts,
		Loader:   &repo.Loader{Dir: opts.policiesDir, Log: logger},
		Emitter:  writer,
		Log:      logger,
	}

	maps, err := comp.Run()
	if err != nil {
		return err
	}

	logger.Info("writing policy descriptions to policies.rst")
	if err := writer.WriteFile("policies.rst", docs.PoliciesTable(docs.AccountMaps(maps), accounts, environ)); err != nil {
		return err
	}
	logger.Info("writing region list to regions.rst")
	return writer.WriteFile("regions.rst", docs.RegionsList(accounts))
}

func newLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("cannot initialize logging: %w", err)
	}
	return logger.Sugar(), nil
}
