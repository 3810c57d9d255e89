package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vreid/horde/internal/pkg/dna"
	"github.com/vreid/horde/internal/pkg/journal"
	"github.com/vreid/horde/internal/pkg/layout"
	"github.com/vreid/horde/internal/pkg/orchestrator"
)

// explain adds a hint for failures a player can act on.
func explain(err error) error {
	kind := orchestrator.Classify(err)

	if perr, ok := orchestrator.AsProgramError(err); ok && perr.HasCode {
		switch perr.Code { //nolint:exhaustive
		case orchestrator.CodeZombieNotReady:
			return fmt.Errorf("%w\nhint: zombies rest %s between battles, try again later", err, layout.Cooldown)
		case orchestrator.CodeNoEmptySlot, orchestrator.CodeArmyFull:
			return fmt.Errorf("%w\nhint: remove a zombie to free a slot", err)
		}
	}

	if kind == orchestrator.KindNotFound {
		return fmt.Errorf("%w\nhint: run `horde army init` first", err)
	}

	if kind.Ambiguous() {
		return fmt.Errorf("%w\nhint: the transaction may still land, check the army before retrying", err)
	}

	return err
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd
}

func printReceipt(w io.Writer, receipt *orchestrator.Receipt) {
	fmt.Fprintf(w, "%s %s in slot %d\n", receipt.Op, receipt.Stage, receipt.Slot)
	fmt.Fprintf(w, "  signature: %s\n", receipt.Signature)
}

func printArmy(w io.Writer, army *layout.Army, now time.Time) {
	fmt.Fprintf(w, "Army of %s (%d free slots)\n", army.Owner, army.FreeSlots())

	table := newTable(w)
	defer table.Flush()

	fmt.Fprintln(table, "SLOT\tDNA\tBREED\tXP\tSTATUS")

	for _, slot := range army.Active() {
		zombie := slot.Zombie

		status := "ready"
		if !zombie.Ready(now) {
			status = fmt.Sprintf("resting %s", zombie.LastFightTime().Add(layout.Cooldown).Sub(now).Round(time.Second))
		}

		fmt.Fprintf(table, "%d\t%#x\t%s\t%d\t%s\n", slot.Index, zombie.DNA, zombie.Breed(), zombie.XP, status)
	}
}

func printEntry(w io.Writer, entry *journal.Entry) {
	fmt.Fprintf(w, "Battle %s\n", entry.Settlement.BattleAddress)

	if entry.Battle == nil {
		fmt.Fprintln(w, "  battle account could not be read")

		return
	}

	table := newTable(w)
	defer table.Flush()

	fmt.Fprintln(table, "CARD\tDNA\tKIND")

	for idx, value := range entry.Battle.ShuffledOrder {
		marker := ""
		if idx == int(entry.Battle.Selection) {
			marker = " <-"
		}

		fmt.Fprintf(table, "%d\t%#x\t%s%s\n", idx, value, dna.KindOf(value), marker)
	}

	fmt.Fprintf(table, "outcome\t%s\t\n", entry.Battle.Outcome)
}

func printJournal(w io.Writer, entries []journal.Entry, tally journal.Tally) {
	table := newTable(w)
	defer table.Flush()

	fmt.Fprintln(table, "RECORDED\tSIGNATURE\tZOMBIE\tOUTCOME")

	for _, entry := range entries {
		outcome := "unknown"
		if entry.Battle != nil {
			outcome = entry.Battle.Outcome.String()
		}

		fmt.Fprintf(table, "%s\t%s\t%d\t%s\n",
			entry.RecordedAt.Format(time.RFC3339), entry.Settlement.Signature, entry.Settlement.ZombieID, outcome)
	}

	fmt.Fprintf(table, "\nwins %d\tlosses %d\t\t\n", tally.Wins, tally.Losses)
}
