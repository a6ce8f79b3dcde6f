package types

import "time"

// Pipeline thresholds. These are design parameters, not tunables; tests pin
// their values.
const (
	// ConfidenceFloor is the hard minimum below which an item is never
	// approved, regardless of judgment.
	ConfidenceFloor = 0.50

	// AutoApproveThreshold approves without asking, both in judgment and in
	// mixed-mode queueing.
	AutoApproveThreshold = 0.85

	// OverlapRejectThreshold rejects items the notebook already knows about
	// when the delta summary carries no new information.
	OverlapRejectThreshold = 0.80

	// SemanticDupThreshold is the cosine similarity at which an item is a
	// semantic duplicate of an archived record.
	SemanticDupThreshold = 0.92

	// MaxPerDomain caps how many items one second-level domain may
	// contribute to a single run's selection.
	MaxPerDomain = 3

	// MaxItemsPerRun caps the final diverse selection per collection run.
	MaxItemsPerRun = 15

	// FreshnessZeroConfidenceCap clamps overall confidence when the
	// freshness score is zero.
	FreshnessZeroConfidenceCap = 0.35

	// QueueTTL is how long a queued item waits before expiring.
	QueueTTL = 7 * 24 * time.Hour

	// MinContentForStore is the content length below which an approved item
	// gets a deep fetch before persisting.
	MinContentForStore = 1000

	// MinContentAfterEnrich rejects items still shallower than this after
	// the deep fetch; they are headlines, not sources.
	MinContentAfterEnrich = 500

	// DiscoveryAutoApproveConfidence marks discovered sources auto-approved.
	DiscoveryAutoApproveConfidence = 0.85
)

// Resource-list page detection thresholds (see fetcher.DetectListPage).
const (
	// ListPageMinURLsWithTitle expands a page with a list-like title at this
	// many unique-domain URLs.
	ListPageMinURLsWithTitle = 5

	// ListPageMinURLsWithDensity expands at this many URLs when URL density
	// exceeds URLDensityThreshold per 100 words.
	ListPageMinURLsWithDensity = 8

	// ListPageMinURLsAlways expands regardless of title or density.
	ListPageMinURLsAlways = 10

	// URLDensityThreshold is URLs per 100 words.
	URLDensityThreshold = 1.5
)
