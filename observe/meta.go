package observe

// ArtifactMeta describes the artifact an operation works on.
type ArtifactMeta struct {
	Kind       string // Artifact kind (required)
	Location   string // Request location (optional)
	Crop       string // Request crop name (optional)
	SowingDate string // Request sowing date (optional)
	RunID      string // Pipeline run id (optional)
}

// Tier names the resolution tier that answered a request.
type Tier string

const (
	TierScope    Tier = "scope"
	TierStore    Tier = "store"
	TierGenerate Tier = "generate"
)

// SpanName returns the deterministic span name for an operation on this artifact.
// Format: artifact.<op>.<kind>
func (m ArtifactMeta) SpanName(op string) string {
	return "artifact." + op + "." + m.Kind
}

// Validate checks that the metadata names a kind.
func (m ArtifactMeta) Validate() error {
	if m.Kind == "" {
		return ErrMissingKind
	}
	return nil
}
