package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mergekeeper/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	File string `arg:"" optional:"" help:"Descriptor file name; omit for a summary of all units"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	ctx := context.Background()
	app, err := Open(ctx, root.Config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return RunHistory(ctx, app.History, h.File, os.Stdout)
}

// RunHistory prints the events of one unit, or one summary line per unit.
func RunHistory(ctx context.Context, history eventstore.Store, file string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if file == "" {
		projection := eventstore.NewUnitHistoryProjection(history)
		if err := projection.Rebuild(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "UNIT\tSTATUS\tATTEMPTS\tFAILURES\tLAST OUTCOME\tLAST EVENT")
		for _, s := range projection.Summaries() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				s.Unit, s.Status, s.Attempts, s.Failures, s.LastOutcome, s.LastEventAt.Format(time.DateTime))
		}
		return w.Flush()
	}

	events, err := history.GetByUnit(ctx, file)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintf(out, "no history recorded for %s\n", file)
		return nil
	}
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp().Format(time.DateTime), e.Type(), e.Payload())
	}
	return w.Flush()
}
