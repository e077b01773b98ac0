package artifact

import (
	"fmt"
	"strings"
)

// Kind identifies an artifact type.
type Kind string

const (
	KindSoil       Kind = "soil"
	KindWater      Kind = "water"
	KindWeather    Kind = "weather"
	KindStage      Kind = "stage"
	KindNutrient   Kind = "nutrient"
	KindPest       Kind = "pest"
	KindDisease    Kind = "disease"
	KindIrrigation Kind = "irrigation"
)

// KindMerge names the final merge step. It is not an artifact kind: merge
// output is never cached, and Valid reports false for it.
const KindMerge Kind = "merge"

// Kinds lists every kind in dependency order.
var Kinds = []Kind{
	KindSoil,
	KindWater,
	KindWeather,
	KindStage,
	KindNutrient,
	KindPest,
	KindDisease,
	KindIrrigation,
}

var baseKinds = []Kind{KindSoil, KindWater, KindWeather}

var stageDependents = []Kind{KindSoil, KindWater, KindWeather, KindStage}

var dependencies = map[Kind][]Kind{
	KindSoil:       nil,
	KindWater:      nil,
	KindWeather:    nil,
	KindStage:      baseKinds,
	KindNutrient:   stageDependents,
	KindPest:       stageDependents,
	KindDisease:    stageDependents,
	KindIrrigation: stageDependents,
}

// ParseKind converts a string into a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dependencies[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := dependencies[k]
	return ok
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Dependencies returns the kinds k is derived from, in resolution order.
// The returned slice is a copy.
func (k Kind) Dependencies() []Kind {
	deps := dependencies[k]
	if len(deps) == 0 {
		return nil
	}
	out := make([]Kind, len(deps))
	copy(out, deps)
	return out
}

// DependsOn reports whether k depends on other, directly or transitively.
func (k Kind) DependsOn(other Kind) bool {
	for _, dep := range dependencies[k] {
		if dep == other || dep.DependsOn(other) {
			return true
		}
	}
	return false
}

// RequiresSowingDate reports whether a RequestKey for k must carry a sowing date.
func (k Kind) RequiresSowingDate() bool {
	return k == KindStage
}

// SowingSensitive reports whether records of kind k are specific to one planting,
// i.e. the stored sowing date must match on lookup.
func (k Kind) SowingSensitive() bool {
	return k == KindStage || k.DependsOn(KindStage)
}
