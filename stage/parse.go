package stage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseable indicates stage text that could not be turned into intervals.
var ErrUnparseable = errors.New("stage: unparseable stage text")

// ParseError describes one malformed stage block.
type ParseError struct {
	// Stage is the 1-based position of the block in the text.
	Stage int
	// Name is the stage name as written.
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stage: block %d (%q): %v", e.Stage, e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnparseable) match any ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrUnparseable
}

// stageBlock matches "Stage N: name", then a start date and an end date on
// later lines. Anything may sit between the three parts.
var stageBlock = regexp.MustCompile(
	`(?s)Stage\s*\d+[:：]\s*(.+?)\s*[\n\r]+` +
		`.*?Start[\s_-]*Date[:：]?\s*(\d{4}-\d{2}-\d{2})\s*` +
		`.*?End[\s_-]*Date[:：]?\s*(\d{4}-\d{2}-\d{2})`,
)

// Parse extracts every stage block from text, in textual order.
//
// Text without any block yields an empty slice and no error. A block whose
// dates are not real calendar dates, or whose start is after its end, yields
// a *ParseError. Overlapping and duplicate stages are kept as written.
func Parse(text string) ([]Interval, error) {
	matches := stageBlock.FindAllStringSubmatch(text, -1)
	intervals := make([]Interval, 0, len(matches))

	for i, m := range matches {
		name := strings.TrimSpace(m[1])
		start, err := ParseDate(m[2])
		if err != nil {
			return nil, &ParseError{Stage: i + 1, Name: name, Err: fmt.Errorf("start date: %w", err)}
		}
		end, err := ParseDate(m[3])
		if err != nil {
			return nil, &ParseError{Stage: i + 1, Name: name, Err: fmt.Errorf("end date: %w", err)}
		}
		if start.After(end) {
			return nil, &ParseError{
				Stage: i + 1,
				Name:  name,
				Err:   fmt.Errorf("start %s is after end %s", start.Format(DateLayout), end.Format(DateLayout)),
			}
		}
		intervals = append(intervals, Interval{Name: name, Start: start, End: end})
	}

	return intervals, nil
}
