package analysis

import (
	"bytes"
	"encoding/json"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteText renders the report for a terminal. Counts are printed with
// thousands separators.
func (r *Report) WriteText(w io.Writer) error {
	var buf bytes.Buffer
	p := message.NewPrinter(language.English)

	runID := r.RunID
	if runID == "" {
		runID = "-"
	}
	p.Fprintf(&buf, "run: %s\n", runID)
	p.Fprintf(&buf, "agents: %d, events: %d, span: %s\n", r.Agents, r.Events, r.Span.String())

	buf.WriteString("\nmeals:\n")
	for i, m := range r.Meals {
		p.Fprintf(&buf, "  agent %d: %d\n", i, m)
	}
	lo, hi := r.MealRange()
	p.Fprintf(&buf, "  total %d, min %d, max %d\n", r.TotalMeals(), lo, hi)

	if r.OK() {
		buf.WriteString("\nfindings: none\n")
		buf.WriteString("\nSimulation correct\n")
	} else {
		p.Fprintf(&buf, "\nfindings: %d\n", len(r.Findings))
		for _, f := range r.Findings {
			buf.WriteString("  " + f.String() + "\n")
		}
		p.Fprintf(&buf, "\nSimulation INCORRECT: %d findings\n", len(r.Findings))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
