// Tally - AWS billable resource counter
// Count. Report. Done.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	handleInterrupts()

	Execute()
}

// handleInterrupts makes Ctrl-C stop the process right away. No files
// are written and partial counts are discarded; a summary from half an
// estate is worse than none.
func handleInterrupts() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		pterm.Warning.Println("Interrupted, exiting without writing results")
		os.Exit(130)
	}()
}
