// Package stage turns a textual growth-stage plan into a current-stage answer.
//
// Parse extracts (name, start, end) intervals from a semi-structured plan such
// as:
//
//	Stage 1: Germination
//	├─ Start Date: 2024-11-11
//	├─ End Date: 2024-11-20
//
// Current computes which interval today falls into using inclusive day
// arithmetic. It never trusts a current-stage claim embedded in the plan;
// Annotate strips such a section and appends the computed one instead.
//
// # Outcomes
//
// Current returns one of five statuses, checked in this order:
//
//   - StatusUnparseable: no intervals.
//   - StatusNotYetSown: the sowing date is after today (regardless of intervals).
//   - StatusHarvested: today is after the latest interval end.
//   - StatusNotStarted: today is before the earliest interval start.
//   - StatusInStage: the first interval, by start date, containing today.
//
// A today that falls in a gap between two intervals yields StatusUnparseable.
package stage
