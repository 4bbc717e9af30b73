package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fennec-cloud/tally/internal/config"
	"github.com/fennec-cloud/tally/internal/engine"
	"github.com/fennec-cloud/tally/internal/providers/aws"
	"github.com/fennec-cloud/tally/internal/report"
)

// CountCommand runs one inventory pass over the selected accounts.
type CountCommand struct {
	cfg *config.Config
}

// Run discovers accounts, fans the probes out and writes the report.
func (c *CountCommand) Run(ctx context.Context) error {
	cfg := c.cfg
	if cfg.Verbose || cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	errs := engine.NewErrorSink()
	cfgs, source, err := buildSource(cfg, errs)
	if err != nil {
		return err
	}

	accounts, err := source.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("discovering accounts: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("no accounts to inventory")
	}
	log.Info().Int("accounts", len(accounts)).Msg("starting inventory")

	agg := engine.NewAggregator()
	eng := engine.New(aws.Probes(cfg, cfgs), aws.NewRegionLister(cfgs), agg, errs, engine.Options{
		AccountWorkers: cfg.MaxWorkers,
		ProbeWorkers:   cfg.MaxProbeWorkers,
		Debug:          cfg.Debug,
		Logger:         log.Logger,
		OnProgress: func(s engine.Snapshot) {
			log.Info().
				Str("progress", fmt.Sprintf("%d/%d (%.1f%%)", s.Completed, s.Total, s.Percent)).
				Str("rate", fmt.Sprintf("%.1f accounts/min", s.Rate*60)).
				Str("eta", s.ETA.Round(time.Second).String()).
				Msg("progress")
		},
	})

	start := time.Now()
	if err := eng.Run(ctx, accounts); err != nil {
		return err
	}

	files := report.Files{
		Summary:  config.SummaryFile,
		EventLog: config.EventLogFile,
		ErrorLog: config.ErrorLogFile,
	}
	if err := files.Save(agg.Totals(), agg.Events(), errs.Records()); err != nil {
		return err
	}

	report.Console(agg.Totals(), cfg.EnabledCategories(), report.ConsoleOptions{
		ImagesEnabled: cfg.Images,
		DataEnabled:   cfg.Data,
		Accounts:      len(accounts),
		Workers:       cfg.MaxWorkers,
		Elapsed:       time.Since(start),
		ErrorCount:    errs.Len(),
		ErrorLogPath:  config.ErrorLogFile,
	})
	return nil
}

// buildSource picks the account source and the matching credential
// strategy: assumed roles for org discovery, shared-config profiles
// for everything else.
func buildSource(cfg *config.Config, errs *engine.ErrorSink) (aws.ConfigSource, aws.Source, error) {
	selected := 0
	for _, on := range []bool{cfg.All, cfg.FromFile, cfg.Profile != ""} {
		if on {
			selected++
		}
	}
	if selected > 1 {
		return nil, nil, errors.New("choose one of --all, --accounts or --profile")
	}

	switch {
	case cfg.All:
		var excluded []string
		if cfg.Exclude {
			ous, err := aws.ReadExcludedOUs(config.ExcludedOUsFile)
			if err != nil {
				return nil, nil, err
			}
			excluded = ous
		}
		cfgs := aws.RoleConfigs{RoleName: cfg.RoleName}
		return cfgs, aws.NewOrgSource(cfgs, excluded), nil

	case cfg.FromFile:
		cfgs := aws.ProfileConfigs{}
		return cfgs, aws.NewFileSource(config.AccountsFile, cfgs, errs), nil

	case cfg.Profile != "":
		cfgs := aws.ProfileConfigs{}
		return cfgs, aws.NewProfileSource(cfg.Profile, cfgs), nil

	default:
		profile, err := promptProfile(os.Stdin, os.Stdout)
		if err != nil {
			return nil, nil, err
		}
		cfgs := aws.ProfileConfigs{}
		return cfgs, aws.NewProfileSource(profile, cfgs), nil
	}
}

// promptProfile asks which profile to count when no source flag was
// given. An empty answer means the default credential chain.
func promptProfile(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "AWS profile to count [default]: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading profile: %w", err)
		}
		return "default", nil
	}
	profile := strings.TrimSpace(scanner.Text())
	if profile == "" {
		return "default", nil
	}
	return profile, nil
}
