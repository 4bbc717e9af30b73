package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Options controls dispatch behavior for one run.
type Options struct {
	// AccountWorkers bounds concurrent account tasks.
	AccountWorkers int
	// ProbeWorkers bounds concurrent probe tasks across all accounts.
	ProbeWorkers int
	// Debug disables both pools: accounts and probes run strictly in
	// order and the first failure aborts the run.
	Debug bool
	// OnProgress, when set, receives one snapshot per finished account.
	OnProgress func(Snapshot)
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

// task is one unit of probe work: a probe bound to at most one locality.
type task struct {
	probe    Probe
	locality string
}

// Engine owns the two worker pools and fans probe work out over accounts.
// Results and failures flow into the aggregator and error sink shared by
// every task; both outlive only the run.
type Engine struct {
	probes     []Probe
	localities LocalityLister
	agg        *Aggregator
	errs       *ErrorSink
	opts       Options
	probeSlots chan struct{}
}

// New builds an engine. The aggregator and error sink are supplied by the
// caller so a fresh pair can be read back after Run returns.
func New(probes []Probe, localities LocalityLister, agg *Aggregator, errs *ErrorSink, opts Options) *Engine {
	if opts.AccountWorkers < 1 {
		opts.AccountWorkers = 1
	}
	if opts.ProbeWorkers < 1 {
		opts.ProbeWorkers = opts.AccountWorkers
	}
	return &Engine{
		probes:     probes,
		localities: localities,
		agg:        agg,
		errs:       errs,
		opts:       opts,
		probeSlots: make(chan struct{}, opts.ProbeWorkers),
	}
}

// Run inventories every account. In the default parallel mode all failures
// are captured in the error sink and Run returns nil once every account has
// finished. In debug mode the first failure is returned immediately.
func (e *Engine) Run(ctx context.Context, accounts []Account) error {
	tracker := NewTracker(len(accounts))

	if e.opts.Debug {
		return e.runSequential(ctx, accounts, tracker)
	}

	acctSlots := make(chan struct{}, e.opts.AccountWorkers)
	var wg sync.WaitGroup
	for _, acct := range accounts {
		acctSlots <- struct{}{}
		wg.Add(1)
		go func(acct Account) {
			defer wg.Done()
			defer func() { <-acctSlots }()
			e.scanAccount(ctx, acct)
			e.finish(tracker, acct)
		}(acct)
	}
	wg.Wait()
	return nil
}

// finish signals account completion exactly once, success or failure.
func (e *Engine) finish(tracker *Tracker, acct Account) {
	snap := tracker.AccountFinished()
	e.opts.Logger.Info().
		Str("account", acct.ID).
		Int("completed", snap.Completed).
		Int("total", snap.Total).
		Msg("account finished")
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(snap)
	}
}

// plan decides which probe invocations apply to the account. Global probes
// are always planned; a locality-discovery failure is returned alongside
// them so callers choose between recording it and failing fast.
func (e *Engine) plan(ctx context.Context, acct Account) ([]task, error) {
	var applicable []Probe
	needLocalities := false
	for _, p := range e.probes {
		if !acct.HasService(p.Service()) {
			continue
		}
		applicable = append(applicable, p)
		if p.PerLocality() {
			needLocalities = true
		}
	}
	if len(applicable) == 0 {
		return nil, nil
	}

	var localities []string
	var discoverErr error
	if needLocalities {
		localities, discoverErr = e.localities.Localities(ctx, acct)
	}

	var tasks []task
	for _, p := range applicable {
		if !p.PerLocality() {
			tasks = append(tasks, task{probe: p})
			continue
		}
		for _, loc := range localities {
			tasks = append(tasks, task{probe: p, locality: loc})
		}
	}
	return tasks, discoverErr
}

// scanAccount is the probe dispatcher: fan out, then join. All probe work
// for the account has finished when it returns.
func (e *Engine) scanAccount(ctx context.Context, acct Account) {
	defer e.recoverAccount(acct)

	log := e.opts.Logger.With().Str("account", acct.ID).Logger()
	if len(acct.Services) == 0 {
		log.Info().Msg("skipping account, no services enabled")
		return
	}
	log.Info().Str("name", acct.Name).Msg("scanning account")

	tasks, err := e.plan(ctx, acct)
	if err != nil {
		e.errs.Record(ErrorRecord{AccountID: acct.ID, Origin: "localities", Message: err.Error()})
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		e.probeSlots <- struct{}{}
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			defer func() { <-e.probeSlots }()
			defer e.recoverAccount(acct)
			e.runProbe(ctx, acct, t)
		}(t)
	}
	wg.Wait()
}

// runProbe executes one probe invocation and funnels its outcome into the
// shared state. A failing probe contributes nothing to the totals.
func (e *Engine) runProbe(ctx context.Context, acct Account, t task) error {
	results, err := t.probe.Count(ctx, acct, t.locality)
	if err != nil {
		e.errs.Record(ErrorRecord{AccountID: acct.ID, Origin: t.probe.Name(), Message: err.Error()})
		return err
	}
	for _, r := range results {
		e.agg.Record(r)
		e.opts.Logger.Debug().
			Str("account", acct.ID).
			Str("category", r.Category).
			Str("locality", r.Locality).
			Int("count", r.Count).
			Msg("probe result")
	}
	return nil
}

// runSequential is the debug path: one account at a time, one probe at a
// time, fail fast so errors stay reproducible and attributable.
func (e *Engine) runSequential(ctx context.Context, accounts []Account, tracker *Tracker) error {
	for i, acct := range accounts {
		e.opts.Logger.Info().
			Str("account", acct.ID).
			Int("index", i+1).
			Int("total", len(accounts)).
			Msg("scanning account")

		if len(acct.Services) == 0 {
			e.opts.Logger.Info().Str("account", acct.ID).Msg("skipping account, no services enabled")
			e.finish(tracker, acct)
			continue
		}

		tasks, err := e.plan(ctx, acct)
		if err != nil {
			return fmt.Errorf("account %s: discovering localities: %w", acct.ID, err)
		}
		for _, t := range tasks {
			if err := e.runProbe(ctx, acct, t); err != nil {
				return fmt.Errorf("account %s: probe %s: %w", acct.ID, t.probe.Name(), err)
			}
		}
		e.finish(tracker, acct)
	}
	return nil
}

// recoverAccount converts a panic escaping a probe or the dispatcher into an
// account-tagged error record so one bad account cannot sink the run.
func (e *Engine) recoverAccount(acct Account) {
	if r := recover(); r != nil {
		e.errs.Record(ErrorRecord{
			AccountID: acct.ID,
			Origin:    "dispatch",
			Message:   fmt.Sprintf("panic: %v", r),
		})
	}
}
