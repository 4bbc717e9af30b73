package report

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/fennec-cloud/tally/internal/engine"
)

// Workers above this threshold keep large estates from crawling; the
// console suggests it when the run looks undersized.
const (
	largeEstateAccounts = 100
	largeEstateWorkers  = 200
)

// ConsoleOptions carries the run facts the console summary annotates.
type ConsoleOptions struct {
	ImagesEnabled bool
	DataEnabled   bool
	Accounts      int
	Workers       int
	Elapsed       time.Duration
	ErrorCount    int
	ErrorLogPath  string
}

// Console renders the totals table and contextual notes to stdout.
func Console(totals map[string]int, enabled map[string]bool, opts ConsoleOptions) {
	data := pterm.TableData{{"Resource Type", "Resource Count"}}
	for _, category := range engine.Categories() {
		if !enabled[category] {
			continue
		}
		data = append(data, []string{category, fmt.Sprintf("%d", totals[category])})
	}
	table := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(data)
	if err := table.Render(); err != nil {
		fmt.Println(renderPlain(totals, enabled))
	}

	pterm.Info.Printfln("Inventoried %d accounts in %s", opts.Accounts, opts.Elapsed.Round(time.Second))

	if !opts.ImagesEnabled {
		pterm.Info.Println("Registry container images were not counted; rerun with --images to include them")
	}
	if !opts.DataEnabled {
		pterm.Info.Println("Data-store totals are informational; rerun with --data when sizing data protection")
	}
	if opts.ErrorCount > 0 {
		pterm.Warning.Printfln("%d errors recorded in %s; rerun with --debug to stop on the first failure", opts.ErrorCount, opts.ErrorLogPath)
	}
	if opts.Accounts > largeEstateAccounts && opts.Workers < largeEstateWorkers {
		pterm.Info.Printfln("Large estate detected (%d accounts); consider --max-workers %d or higher", opts.Accounts, largeEstateWorkers)
	}
}

func renderPlain(totals map[string]int, enabled map[string]bool) string {
	out := ""
	for _, category := range engine.Categories() {
		if !enabled[category] {
			continue
		}
		out += fmt.Sprintf("%s: %d\n", category, totals[category])
	}
	return out
}
