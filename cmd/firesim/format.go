package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/engine"
	"github.com/talgya/firesim/internal/persistence"
)

func printSummary(w io.Writer, sim *engine.Simulation, elapsed time.Duration) {
	st := sim.Stats
	fmt.Fprintf(w, "=== %s run, seed %d ===\n", sim.Params.Scenario, sim.Params.Seed)
	fmt.Fprintf(w, "Ended at %s (%s ticks) in %s\n\n",
		engine.SimTime(sim.Tick), humanize.Comma(int64(sim.Tick)), elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label string, n int) {
		fmt.Fprintf(tw, "  %s\t%s\n", label, humanize.Comma(int64(n)))
	}
	row("Fires started", st.FiresStarted)
	row("Fires extinguished", st.FiresExtinguished)
	row("Buildings destroyed", st.BuildingsDestroyed)
	row("Casualties", st.Casualties)
	row("Arsonists apprehended", st.ArsonistsApprehended)
	row("Still burning", st.ActiveFires)
	for _, p := range agents.AllProfiles() {
		if n := st.FiresByProfile[p]; n > 0 {
			row("  by "+p.DisplayName(), n)
		}
	}
	fmt.Fprintln(tw)
	row("Firefighters", st.LiveFirefighters)
	row("Police", st.LivePolice)
	row("Civilians", st.LiveCivilians)
	row("Arsonists at large", st.LiveArsonists)
	tw.Flush()
}

func printRuns(w io.Writer, runs []persistence.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No archived runs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFINISHED\tSCENARIO\tSEED\tDAYS\tFIRES\tDESTROYED\tCASUALTIES\tARRESTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, humanize.Time(r.Finished()), r.Scenario, r.Seed, r.Days,
			humanize.Comma(int64(r.FiresStarted)),
			humanize.Comma(int64(r.BuildingsDestroyed)),
			humanize.Comma(int64(r.Casualties)),
			humanize.Comma(int64(r.ArsonistsApprehended)))
	}
	tw.Flush()
}
