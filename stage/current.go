package stage

import "time"

// Status is the outcome of a current-stage computation.
type Status int

const (
	// StatusUnparseable means no interval could be matched to today.
	StatusUnparseable Status = iota
	// StatusNotYetSown means the sowing date is in the future.
	StatusNotYetSown
	// StatusHarvested means today is past every interval.
	StatusHarvested
	// StatusNotStarted means today is before every interval.
	StatusNotStarted
	// StatusInStage means today falls inside an interval.
	StatusInStage
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnparseable:
		return "unparseable"
	case StatusNotYetSown:
		return "not_yet_sown"
	case StatusHarvested:
		return "harvested"
	case StatusNotStarted:
		return "not_started"
	case StatusInStage:
		return "in_stage"
	default:
		return "unknown"
	}
}

// Result is the current-stage answer. Which fields are set depends on Status:
//
//   - StatusNotYetSown: SowingDate.
//   - StatusHarvested: LastEnd.
//   - StatusNotStarted: FirstStart.
//   - StatusInStage: Stage and the day counts.
type Result struct {
	Status Status
	Today  time.Time

	SowingDate time.Time
	LastEnd    time.Time
	FirstStart time.Time

	Stage         Interval
	DaysCompleted int
	DaysTotal     int
	DaysRemaining int
	ProgressPct   float64
}

// Unparseable returns the result used when no current stage can be determined.
func Unparseable(today time.Time) Result {
	return Result{Status: StatusUnparseable, Today: DateOf(today)}
}

// Current determines which stage today falls into.
//
// sowingDate may be the zero time when unknown. intervals is not modified;
// the computation works on a sorted copy, so the result does not depend on
// input order.
func Current(intervals []Interval, sowingDate, today time.Time) Result {
	today = DateOf(today)
	if len(intervals) == 0 {
		return Unparseable(today)
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	SortByStart(sorted)

	if !sowingDate.IsZero() {
		sowingDate = DateOf(sowingDate)
		if sowingDate.After(today) {
			return Result{Status: StatusNotYetSown, Today: today, SowingDate: sowingDate}
		}
	}

	lastEnd := sorted[0].End
	for _, iv := range sorted[1:] {
		if iv.End.After(lastEnd) {
			lastEnd = iv.End
		}
	}
	if today.After(lastEnd) {
		return Result{Status: StatusHarvested, Today: today, LastEnd: lastEnd}
	}

	firstStart := sorted[0].Start
	if today.Before(firstStart) {
		return Result{Status: StatusNotStarted, Today: today, FirstStart: firstStart}
	}

	for _, iv := range sorted {
		if !iv.Contains(today) {
			continue
		}
		total := iv.Days()
		completed := daysBetween(iv.Start, today) + 1
		return Result{
			Status:        StatusInStage,
			Today:         today,
			Stage:         iv,
			DaysCompleted: completed,
			DaysTotal:     total,
			DaysRemaining: daysBetween(today, iv.End),
			ProgressPct:   100 * float64(completed) / float64(total),
		}
	}

	// Today sits in a gap between two stages.
	return Unparseable(today)
}
