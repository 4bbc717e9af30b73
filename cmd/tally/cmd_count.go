package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fennec-cloud/tally/internal/config"
)

var (
	countAll             bool
	countFromFile        bool
	countProfile         string
	countExclude         bool
	countRole            string
	countImages          bool
	countData            bool
	countMaxImageTags    int
	countMaxWorkers      int
	countMaxProbeWorkers int
	countDebug           bool
	countVerbose         bool
	countConfigPath      string
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count billable resources across accounts",
	Long: `Count billable resources in one account, a list of accounts,
or every active account in the organization.

Failures never abort the run: a probe that cannot list its resources
is logged to the error file and the rest of the estate is still
counted. Use --debug to run sequentially and stop on the first error.`,
	Example: `  tally count                          # Prompt for a profile
  tally count --profile prod           # Count one profile
  tally count --accounts               # Profiles from accounts.txt
  tally count --all                    # Every active org account
  tally count --all --exclude          # Skip OUs in excluded-ous.txt
  tally count --images --max-image-tags 10
  tally count --debug --profile prod   # Sequential, fail fast`,
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)

	countCmd.Flags().BoolVar(&countAll, "all", false, "Count every active account in the organization")
	countCmd.Flags().BoolVar(&countFromFile, "accounts", false, "Read profiles from "+config.AccountsFile)
	countCmd.Flags().StringVarP(&countProfile, "profile", "p", "", "Count the account behind one named profile")
	countCmd.Flags().BoolVar(&countExclude, "exclude", false, "Skip accounts under OUs listed in "+config.ExcludedOUsFile)
	countCmd.Flags().StringVar(&countRole, "role", config.DefaultRoleName, "Role assumed in org member accounts")
	countCmd.Flags().BoolVar(&countImages, "images", false, "Also count registry container images (slow)")
	countCmd.Flags().BoolVar(&countData, "data", false, "Note data-store categories in the closing summary")
	countCmd.Flags().IntVar(&countMaxImageTags, "max-image-tags", 5, "Tags counted per registry image (1-1000)")
	countCmd.Flags().IntVar(&countMaxWorkers, "max-workers", config.DefaultMaxWorkers, "Concurrent account workers (1-1000)")
	countCmd.Flags().IntVar(&countMaxProbeWorkers, "max-probe-workers", 0, "Concurrent probe workers, defaults to --max-workers")
	countCmd.Flags().BoolVar(&countDebug, "debug", false, "Run sequentially and stop on the first error")
	countCmd.Flags().BoolVarP(&countVerbose, "verbose", "v", false, "Log every individual probe result")
	countCmd.Flags().StringVar(&countConfigPath, "config", "", "TOML config file, overridden by flags")
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		// Bad tunables are an operator mistake; refuse to start.
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	return (&CountCommand{cfg: cfg}).Run(cmd.Context())
}

// buildConfig layers precedence: defaults, then the config file, then
// any flag the user actually set.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if countConfigPath != "" {
		loaded, err := config.Load(countConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("all") {
		cfg.All = countAll
	}
	if flags.Changed("accounts") {
		cfg.FromFile = countFromFile
	}
	if flags.Changed("profile") {
		cfg.Profile = countProfile
	}
	if flags.Changed("exclude") {
		cfg.Exclude = countExclude
	}
	if flags.Changed("role") {
		cfg.RoleName = countRole
	}
	if flags.Changed("images") {
		cfg.Images = countImages
	}
	if flags.Changed("data") {
		cfg.Data = countData
	}
	if flags.Changed("max-image-tags") {
		cfg.MaxImageTags = countMaxImageTags
	}
	if flags.Changed("max-workers") {
		cfg.MaxWorkers = countMaxWorkers
	}
	if flags.Changed("max-probe-workers") {
		cfg.MaxProbeWorkers = countMaxProbeWorkers
	}
	if flags.Changed("debug") {
		cfg.Debug = countDebug
	}
	if flags.Changed("verbose") {
		cfg.Verbose = countVerbose
	}
	return cfg, nil
}
