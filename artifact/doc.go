// Package artifact defines the units the advisory pipeline produces and caches.
//
// An artifact is one named piece of generated advisory content (soil, water,
// weather, stage, nutrient, pest, disease, irrigation). Each Kind declares the
// kinds it is derived from; a Record carries the payload plus the ids of the
// records it was derived from. A Scope holds the records resolved during one
// top-level pipeline invocation.
package artifact
