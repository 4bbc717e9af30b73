// Package report writes run results to CSV files and the console.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fennec-cloud/tally/internal/engine"
)

// WriteSummary writes one row per category, disabled ones included as
// zero, so the file's shape is stable run over run.
func WriteSummary(w io.Writer, totals map[string]int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Resource Type", "Resource Count"}); err != nil {
		return err
	}
	for _, category := range engine.Categories() {
		if err := cw.Write([]string{category, strconv.Itoa(totals[category])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEventLog writes every individual count a probe reported, in the
// order the aggregator recorded them.
func WriteEventLog(w io.Writer, events []engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Resource Type", "Resource Count", "Account", "Locality"}); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write([]string{e.Category, strconv.Itoa(e.Count), e.AccountName, e.Locality}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteErrorLog writes one line per error record.
func WriteErrorLog(w io.Writer, records []engine.ErrorRecord) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}

// Files names the run's output files.
type Files struct {
	Summary  string
	EventLog string
	ErrorLog string
}

// Save writes the summary and event log, and the error log only when
// there are errors to report.
func (f Files) Save(totals map[string]int, events []engine.Result, errs []engine.ErrorRecord) error {
	if err := writeFile(f.Summary, func(w io.Writer) error {
		return WriteSummary(w, totals)
	}); err != nil {
		return err
	}
	if err := writeFile(f.EventLog, func(w io.Writer) error {
		return WriteEventLog(w, events)
	}); err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	return writeFile(f.ErrorLog, func(w io.Writer) error {
		return WriteErrorLog(w, errs)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
