package domain

// IntegrationConfidence reports how certain an integration detector's
// classification is.
type IntegrationConfidence string

const (
	ConfidenceExact IntegrationConfidence = "exact"
	ConfidenceHigh  IntegrationConfidence = "high"
)

// IntegrationKind discriminates the three classification shapes a detector
// can report for a virtual branch.
type IntegrationKind string

const (
	IntegrationIntegrated    IntegrationKind = "integrated"
	IntegrationNotIntegrated IntegrationKind = "not_integrated"
	IntegrationPartial       IntegrationKind = "partial"
)

// IntegrationInfo is the per-branch detection result reported via the
// BranchIntegrationDetected event and persisted in the detection cache.
type IntegrationInfo struct {
	Name    string
	Summary string
	Kind    IntegrationKind

	// Integrated fields.
	IntegratedAt  uint32 // 0 = unknown
	Confidence    IntegrationConfidence
	CommitCount   uint32

	// NotIntegrated fields.
	TotalCommitCount uint32
	IntegratedCount  uint32
	OrphanedCount    uint32

	// Partial fields.
	Missing uint32
}
