// Command sureal recovers subjective quality scores from opinion-score and
// paired-comparison datasets.
//
//	sureal rate --dataset ratings.json --models mos,p913
//	sureal pc --dataset comparisons.yaml --output reports/
//	sureal validate --dataset ratings.json
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
