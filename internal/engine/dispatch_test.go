package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbe is a deterministic probe recording every invocation.
type stubProbe struct {
	name        string
	service     string
	perLocality bool
	fn          func(acct Account, locality string) ([]Result, error)

	mu    sync.Mutex
	calls []string
}

func (p *stubProbe) Name() string      { return p.name }
func (p *stubProbe) Service() string   { return p.service }
func (p *stubProbe) PerLocality() bool { return p.perLocality }

func (p *stubProbe) Count(_ context.Context, acct Account, locality string) ([]Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, acct.ID+"|"+locality)
	p.mu.Unlock()
	if p.fn == nil {
		return nil, nil
	}
	return p.fn(acct, locality)
}

func (p *stubProbe) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func fixedLocalities(locs ...string) LocalityLister {
	return LocalityListerFunc(func(context.Context, Account) ([]string, error) {
		return locs, nil
	})
}

func countingProbe(name, service string, n int) *stubProbe {
	return &stubProbe{
		name:    name,
		service: service,
		fn: func(acct Account, _ string) ([]Result, error) {
			return []Result{{
				Category:    CategoryVirtualMachines,
				Count:       n,
				AccountID:   acct.ID,
				AccountName: acct.Name,
			}}, nil
		},
	}
}

func testAccounts(n int) []Account {
	accounts := make([]Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, Account{
			ID:       fmt.Sprintf("acct-%03d", i),
			Name:     fmt.Sprintf("Account %d", i),
			Services: []string{"ec2", "s3"},
		})
	}
	return accounts
}

// eventKeys flattens an event log into a sortable multiset representation.
func eventKeys(events []Result) []string {
	keys := make([]string, 0, len(events))
	for _, e := range events {
		keys = append(keys, fmt.Sprintf("%s|%s|%s|%d", e.Category, e.AccountID, e.Locality, e.Count))
	}
	sort.Strings(keys)
	return keys
}

func runEngine(t *testing.T, accounts []Account, probes []Probe, localities LocalityLister, opts Options) (*Aggregator, *ErrorSink, error) {
	t.Helper()
	agg := NewAggregator()
	errs := NewErrorSink()
	eng := New(probes, localities, agg, errs, opts)
	err := eng.Run(context.Background(), accounts)
	return agg, errs, err
}

func TestRunIsPoolSizeInvariant(t *testing.T) {
	accounts := testAccounts(20)
	build := func() []Probe {
		return []Probe{
			countingProbe("vm probe", "ec2", 3),
			&stubProbe{
				name:    "bucket probe",
				service: "s3",
				fn: func(acct Account, _ string) ([]Result, error) {
					return []Result{{Category: CategoryDataBuckets, Count: 2, AccountID: acct.ID}}, nil
				},
			},
		}
	}

	aggNarrow, errsNarrow, err := runEngine(t, accounts, build(), fixedLocalities(), Options{AccountWorkers: 1, ProbeWorkers: 1})
	require.NoError(t, err)
	aggWide, errsWide, err := runEngine(t, accounts, build(), fixedLocalities(), Options{AccountWorkers: 50, ProbeWorkers: 50})
	require.NoError(t, err)

	assert.Equal(t, aggNarrow.Totals(), aggWide.Totals())
	assert.Equal(t, eventKeys(aggNarrow.Events()), eventKeys(aggWide.Events()))
	assert.Zero(t, errsNarrow.Len())
	assert.Zero(t, errsWide.Len())
	assert.Equal(t, 20*3, aggWide.Total(CategoryVirtualMachines))
	assert.Equal(t, 20*2, aggWide.Total(CategoryDataBuckets))
}

func TestFailingProbeDoesNotStopSiblings(t *testing.T) {
	failing := &stubProbe{
		name:    "vm probe",
		service: "ec2",
		fn: func(Account, string) ([]Result, error) {
			return nil, errors.New("access denied")
		},
	}
	sibling := &stubProbe{
		name:    "bucket probe",
		service: "s3",
		fn: func(acct Account, _ string) ([]Result, error) {
			return []Result{{Category: CategoryDataBuckets, Count: 4, AccountID: acct.ID}}, nil
		},
	}

	accounts := []Account{{ID: "acct-1", Services: []string{"ec2", "s3"}}}
	agg, errs, err := runEngine(t, accounts, []Probe{failing, sibling}, fixedLocalities(), Options{AccountWorkers: 4, ProbeWorkers: 4})
	require.NoError(t, err)

	assert.Zero(t, agg.Total(CategoryVirtualMachines), "failing probe contributes nothing")
	assert.Equal(t, 4, agg.Total(CategoryDataBuckets), "sibling probe still completes")

	recs := errs.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "acct-1", recs[0].AccountID)
	assert.Equal(t, "vm probe", recs[0].Origin)
}

func TestProbeGatingByServiceSet(t *testing.T) {
	gated := countingProbe("vm probe", "ec2", 1)
	open := &stubProbe{
		name:    "bucket probe",
		service: "s3",
		fn: func(acct Account, _ string) ([]Result, error) {
			return []Result{{Category: CategoryDataBuckets, Count: 1, AccountID: acct.ID}}, nil
		},
	}

	accounts := []Account{{ID: "acct-1", Services: []string{"s3"}}}
	agg, errs, err := runEngine(t, accounts, []Probe{gated, open}, fixedLocalities(), Options{AccountWorkers: 2, ProbeWorkers: 2})
	require.NoError(t, err)

	assert.Zero(t, gated.callCount(), "probe without its service enabled is never invoked")
	assert.Equal(t, 1, open.callCount())
	assert.Equal(t, 1, agg.Total(CategoryDataBuckets))
	assert.Zero(t, errs.Len())
}

func TestAccountWithoutServicesShortCircuits(t *testing.T) {
	probe := countingProbe("vm probe", "ec2", 1)
	accounts := []Account{{ID: "acct-1"}}

	agg, errs, err := runEngine(t, accounts, []Probe{probe}, fixedLocalities(), Options{AccountWorkers: 1})
	require.NoError(t, err)

	assert.Zero(t, probe.callCount())
	assert.Empty(t, agg.Events())
	assert.Zero(t, errs.Len())
}

func TestPerLocalityProbeRunsOncePerLocality(t *testing.T) {
	regional := &stubProbe{
		name:        "image probe",
		service:     "ecr",
		perLocality: true,
		fn: func(acct Account, locality string) ([]Result, error) {
			return []Result{{Category: CategoryRegistryImages, Count: 1, AccountID: acct.ID, Locality: locality}}, nil
		},
	}

	accounts := []Account{{ID: "acct-1", Services: []string{"ecr"}}}
	agg, _, err := runEngine(t, accounts, []Probe{regional},
		fixedLocalities("us-east-1", "eu-west-1", "ap-south-1"),
		Options{AccountWorkers: 2, ProbeWorkers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, regional.callCount())
	assert.Equal(t, 3, agg.Total(CategoryRegistryImages))

	localities := map[string]bool{}
	for _, e := range agg.Events() {
		localities[e.Locality] = true
	}
	assert.Len(t, localities, 3)
}

func TestLocalityDiscoveryFailureIsRecordedAndGlobalProbesRun(t *testing.T) {
	regional := &stubProbe{name: "image probe", service: "ecr", perLocality: true}
	global := &stubProbe{
		name:    "bucket probe",
		service: "s3",
		fn: func(acct Account, _ string) ([]Result, error) {
			return []Result{{Category: CategoryDataBuckets, Count: 2, AccountID: acct.ID}}, nil
		},
	}
	broken := LocalityListerFunc(func(context.Context, Account) ([]string, error) {
		return nil, errors.New("regions unavailable")
	})

	accounts := []Account{{ID: "acct-1", Services: []string{"ecr", "s3"}}}
	agg, errs, err := runEngine(t, accounts, []Probe{regional, global}, broken, Options{AccountWorkers: 1})
	require.NoError(t, err)

	assert.Zero(t, regional.callCount(), "locality probes skipped without localities")
	assert.Equal(t, 2, agg.Total(CategoryDataBuckets))

	recs := errs.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "localities", recs[0].Origin)
	assert.Equal(t, "acct-1", recs[0].AccountID)
}

func TestDebugModeFailsFast(t *testing.T) {
	boom := errors.New("expired credentials")
	first := &stubProbe{
		name:    "vm probe",
		service: "ec2",
		fn: func(Account, string) ([]Result, error) {
			return nil, boom
		},
	}
	// Declared after the failing probe; must never be reached.
	second := countingProbe("bucket probe", "s3", 1)

	accounts := []Account{{ID: "acct-1", Services: []string{"ec2", "s3"}}}
	_, _, err := runEngine(t, accounts, []Probe{first, second}, fixedLocalities(), Options{Debug: true})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "acct-1")
	assert.Zero(t, second.callCount(), "debug mode stops at the first failure")
}

func TestDebugModeRunsAccountsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	probe := &stubProbe{
		name:    "vm probe",
		service: "ec2",
		fn: func(acct Account, _ string) ([]Result, error) {
			mu.Lock()
			order = append(order, acct.ID)
			mu.Unlock()
			return nil, nil
		},
	}

	accounts := []Account{
		{ID: "a", Services: []string{"ec2"}},
		{ID: "b", Services: []string{"ec2"}},
		{ID: "c", Services: []string{"ec2"}},
	}
	_, _, err := runEngine(t, accounts, []Probe{probe}, fixedLocalities(), Options{Debug: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPanickingProbeBecomesErrorRecord(t *testing.T) {
	wild := &stubProbe{
		name:    "vm probe",
		service: "ec2",
		fn: func(Account, string) ([]Result, error) {
			panic("nil dereference in response parsing")
		},
	}
	steady := &stubProbe{
		name:    "bucket probe",
		service: "s3",
		fn: func(acct Account, _ string) ([]Result, error) {
			return []Result{{Category: CategoryDataBuckets, Count: 1, AccountID: acct.ID}}, nil
		},
	}

	accounts := []Account{
		{ID: "acct-1", Services: []string{"ec2", "s3"}},
		{ID: "acct-2", Services: []string{"s3"}},
	}
	agg, errs, err := runEngine(t, accounts, []Probe{wild, steady}, fixedLocalities(), Options{AccountWorkers: 2, ProbeWorkers: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, agg.Total(CategoryDataBuckets), "other work unaffected")
	recs := errs.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "acct-1", recs[0].AccountID)
	assert.Contains(t, recs[0].Message, "panic")
}

func TestProgressCallbackFiresOncePerAccount(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot

	accounts := testAccounts(5)
	agg := NewAggregator()
	errs := NewErrorSink()
	eng := New([]Probe{countingProbe("vm probe", "ec2", 1)}, fixedLocalities(), agg, errs, Options{
		AccountWorkers: 3,
		ProbeWorkers:   3,
		OnProgress: func(s Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		},
	})
	require.NoError(t, eng.Run(context.Background(), accounts))

	require.Len(t, snaps, 5)
	completed := map[int]bool{}
	for _, s := range snaps {
		assert.Equal(t, 5, s.Total)
		completed[s.Completed] = true
	}
	// Exactly one snapshot per completion count.
	assert.Len(t, completed, 5)
}
