package stage

import (
	"fmt"
	"strings"
	"time"
)

// SectionHeader opens the current-stage section of a stage report.
const SectionHeader = "CURRENT STAGE:"

// sectionTerminators end a current-stage section written by a generator.
var sectionTerminators = []string{"CRITICAL ASSUMPTIONS:", "CRITICAL ALERTS:"}

// StripCurrentStage removes every current-stage section from text. A section
// runs from SectionHeader up to the next terminator heading or the end of
// the text; the terminator itself is kept.
func StripCurrentStage(text string) string {
	var b strings.Builder
	rest := text
	for {
		idx := strings.Index(rest, SectionHeader)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		tail := rest[idx+len(SectionHeader):]

		cut := len(tail)
		for _, term := range sectionTerminators {
			if i := strings.Index(tail, term); i >= 0 && i < cut {
				cut = i
			}
		}
		rest = tail[cut:]
	}
	return b.String()
}

// Render formats a result as a current-stage section.
func Render(r Result) string {
	var b strings.Builder
	b.WriteString("\n\n")

	switch r.Status {
	case StatusNotYetSown:
		fmt.Fprintf(&b, "%s Crop not yet sown. (Sowing date is in future: %s).\n",
			SectionHeader, formatDate(r.SowingDate))
	case StatusHarvested:
		fmt.Fprintf(&b, "%s Crop has already been harvested. (Last stage ended on %s).\n",
			SectionHeader, formatDate(r.LastEnd))
	case StatusNotStarted:
		fmt.Fprintf(&b, "%s Crop growth not yet started. (First stage starts on %s).\n",
			SectionHeader, formatDate(r.FirstStart))
	case StatusInStage:
		b.WriteString(SectionHeader + "\n")
		fmt.Fprintf(&b, "- Stage Name: %s\n", r.Stage.Name)
		fmt.Fprintf(&b, "- Start Date: %s\n", formatDate(r.Stage.Start))
		fmt.Fprintf(&b, "- End Date: %s\n", formatDate(r.Stage.End))
		fmt.Fprintf(&b, "- Days Completed: %d/%d days\n", r.DaysCompleted, r.DaysTotal)
		fmt.Fprintf(&b, "- Progress: %.1f%%\n", r.ProgressPct)
		fmt.Fprintf(&b, "- Days Remaining: %d days\n", r.DaysRemaining)
		fmt.Fprintf(&b, "- Explanation: Crop is currently in '%s' stage (Today: %s).\n",
			r.Stage.Name, formatDate(r.Today))
	default:
		fmt.Fprintf(&b, "%s Could not determine stage from date ranges.\n", SectionHeader)
	}

	return b.String()
}

// Evaluate parses text and computes the current stage. Parse failures are
// reported as StatusUnparseable; the parse error is returned for logging.
func Evaluate(text, sowingDate string, today time.Time) (Result, error) {
	intervals, err := Parse(text)
	if err != nil {
		return Unparseable(today), err
	}
	sowing, _ := ParseSowingDate(sowingDate)
	return Current(intervals, sowing, today), nil
}

// Annotate replaces any current-stage section in a generated stage plan with
// one computed from the plan's own dates. Trailing whitespace before the
// appended section is trimmed, so annotating twice yields the same text.
func Annotate(text, sowingDate string, today time.Time) (string, Result, error) {
	stripped := strings.TrimRight(StripCurrentStage(text), " \t\r\n")
	result, err := Evaluate(stripped, sowingDate, today)
	return stripped + Render(result), result, err
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}
