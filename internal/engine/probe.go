package engine

import "context"

// Billable resource categories. Totals carry exactly this set; probes must
// not emit anything else.
const (
	CategoryVirtualMachines      = "Virtual Machines"
	CategoryContainerHosts       = "Container Hosts"
	CategoryServerlessFunctions  = "Serverless Functions"
	CategoryServerlessContainers = "Serverless Containers"
	CategoryDataBuckets          = "Data Buckets"
	CategoryPaaSDatabases        = "PaaS Databases"
	CategoryDataWarehouses       = "Data Warehouses"
	CategoryNonOSDisks           = "Non-OS Disks"
	CategoryRegistryImages       = "Registry Container Images"
	CategoryKubernetesSensors    = "Kubernetes Sensors"
	CategoryVMSensors            = "Virtual Machine Sensors"
	CategoryContainerSensors     = "Serverless Container Sensors"
)

// Categories returns the fixed category set in display order.
func Categories() []string {
	return []string{
		CategoryVirtualMachines,
		CategoryContainerHosts,
		CategoryServerlessFunctions,
		CategoryServerlessContainers,
		CategoryDataBuckets,
		CategoryPaaSDatabases,
		CategoryDataWarehouses,
		CategoryNonOSDisks,
		CategoryRegistryImages,
		CategoryKubernetesSensors,
		CategoryVMSensors,
		CategoryContainerSensors,
	}
}

// Account is one billing boundary to inventory. Identity is ID; Services is
// the set of service identifiers enabled for it, lowercased.
type Account struct {
	ID       string
	Name     string
	Services []string
}

// HasService reports whether svc is enabled for the account.
func (a Account) HasService(svc string) bool {
	for _, s := range a.Services {
		if s == svc {
			return true
		}
	}
	return false
}

// Result is one named count emitted by a probe. Write-once.
type Result struct {
	Category    string
	Count       int
	AccountID   string
	AccountName string
	Locality    string
	Detail      string
}

// Probe counts one category of resource for one account. Implementations
// must be idempotent and own their walkers; shared state goes through the
// Aggregator only.
type Probe interface {
	// Name identifies the probe in logs and error records.
	Name() string
	// Service is the service identifier gating the probe. The mapping is
	// declarative: one string per probe, identical in every dispatch path.
	Service() string
	// PerLocality reports whether the probe runs once per account locality.
	PerLocality() bool
	// Count lists the remote resources and returns zero or more results.
	// Locality is empty for account-global probes.
	Count(ctx context.Context, acct Account, locality string) ([]Result, error)
}

// LocalityLister discovers the localities (regions) known to an account.
// It is consulted only when a locality-scoped probe is applicable.
type LocalityLister interface {
	Localities(ctx context.Context, acct Account) ([]string, error)
}

// LocalityListerFunc adapts a function to LocalityLister.
type LocalityListerFunc func(ctx context.Context, acct Account) ([]string, error)

// Localities implements LocalityLister.
func (f LocalityListerFunc) Localities(ctx context.Context, acct Account) ([]string, error) {
	return f(ctx, acct)
}
