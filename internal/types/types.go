// Package types defines the shared records, enumerations, and interfaces used
// across the dossier agents. Dict-shaped state from the runtime boundary is
// normalized into the named types here; enumerated fields are closed string
// types with a defined value set.
package types

import (
	"time"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// CollectionMode controls whether collections run on a schedule, only on
// demand, or both.
type CollectionMode string

const (
	CollectionManual    CollectionMode = "manual"
	CollectionAutomatic CollectionMode = "automatic"
	CollectionHybrid    CollectionMode = "hybrid"
)

// ApprovalMode controls what happens to collected items after judgment.
type ApprovalMode string

const (
	// ApprovalTrustMe approves everything immediately.
	ApprovalTrustMe ApprovalMode = "trust_me"
	// ApprovalReview queues everything for the user.
	ApprovalReview ApprovalMode = "review"
	// ApprovalMixed auto-approves at high confidence, queues the rest.
	ApprovalMixed ApprovalMode = "mixed"
)

// SourceKind identifies a fetcher adapter.
type SourceKind string

const (
	KindFeed          SourceKind = "feed"
	KindWebPage       SourceKind = "web_page"
	KindFiling        SourceKind = "filing"
	KindVideoChannel  SourceKind = "video_channel"
	KindVideoKeyword  SourceKind = "video_keyword"
	KindPaperCategory SourceKind = "paper_category"
	KindPaperQuery    SourceKind = "paper_query"
	KindNewsKeyword   SourceKind = "news_keyword"
)

// ItemStatus is the lifecycle state of a collected item.
type ItemStatus string

const (
	StatusPending  ItemStatus = "pending"
	StatusApproved ItemStatus = "approved"
	StatusRejected ItemStatus = "rejected"
	StatusExpired  ItemStatus = "expired"
)

// SourceHealth classifies a source endpoint by its recent behavior.
type SourceHealth string

const (
	HealthHealthy  SourceHealth = "healthy"
	HealthDegraded SourceHealth = "degraded"
	HealthFailing  SourceHealth = "failing"
	HealthDead     SourceHealth = "dead"
	HealthUnknown  SourceHealth = "unknown"
)

// JudgmentDecision is the Supervisor's verdict on a collected item.
type JudgmentDecision string

const (
	DecisionApprove     JudgmentDecision = "approve"
	DecisionReject      JudgmentDecision = "reject"
	DecisionDeferToUser JudgmentDecision = "defer_to_user"
)

// SignalType identifies a user-signal event.
type SignalType string

const (
	SignalView               SignalType = "view"
	SignalClick              SignalType = "click"
	SignalIgnore             SignalType = "ignore"
	SignalItemApproved       SignalType = "item_approved"
	SignalItemRejected       SignalType = "item_rejected"
	SignalSourceApproved     SignalType = "source_approved"
	SignalSourceRejected     SignalType = "source_rejected"
	SignalUserCapture        SignalType = "user_capture"
	SignalTopicInterest      SignalType = "topic_interest"
	SignalContentHighlighted SignalType = "content_highlighted"
	SignalSearchMiss         SignalType = "search_miss"
	// SignalCollectionRun marks one completed collection cycle; recorded by
	// the gatherer, not the user. Counted for briefing run stats, ignored by
	// preference learning.
	SignalCollectionRun SignalType = "collection_run"
)

// FeedbackType qualifies a rejection and drives adaptive behavior.
type FeedbackType string

const (
	FeedbackWrongTopic  FeedbackType = "wrong_topic"
	FeedbackBadSource   FeedbackType = "bad_source"
	FeedbackTooOld      FeedbackType = "too_old"
	FeedbackAlreadyKnew FeedbackType = "already_knew"
	FeedbackOther       FeedbackType = "other"
)

// Namespace is the access scope tag on archive records.
type Namespace string

const (
	NamespaceSystem     Namespace = "SYSTEM"
	NamespaceSupervisor Namespace = "SUPERVISOR"
	NamespaceGatherer   Namespace = "GATHERER"
)

// FactCategory classifies a working-fact assertion.
type FactCategory string

const (
	FactUserFact       FactCategory = "user_fact"
	FactPreference     FactCategory = "preference"
	FactProjectContext FactCategory = "project_context"
	FactDecision       FactCategory = "decision"
	FactDate           FactCategory = "date"
	FactRelationship   FactCategory = "relationship"
	FactTheme          FactCategory = "theme"
)

// Importance ranks memory records for retention and compression.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// NotebookPurpose is the classified research purpose of a notebook.
type NotebookPurpose string

const (
	PurposeCompanyResearch    NotebookPurpose = "company_research"
	PurposeTopicResearch      NotebookPurpose = "topic_research"
	PurposeProductResearch    NotebookPurpose = "product_research"
	PurposeSkillDevelopment   NotebookPurpose = "skill_development"
	PurposePersonTracking     NotebookPurpose = "person_tracking"
	PurposeIndustryMonitoring NotebookPurpose = "industry_monitoring"
	PurposeProjectKnowledge   NotebookPurpose = "project_knowledge"
	PurposePersonalInterests  NotebookPurpose = "personal_interests"
)

// =============================================================================
// NOTEBOOK PROFILE
// =============================================================================

// FilingSource configures regulatory-filing collection for one company.
type FilingSource struct {
	Ticker      string   `yaml:"ticker" json:"ticker"`
	CompanyName string   `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	FilingTypes []string `yaml:"filing_types,omitempty" json:"filing_types,omitempty"`
}

// SourcesConfig maps each source kind to its kind-specific entries.
type SourcesConfig struct {
	Feeds           []string       `yaml:"feeds,omitempty" json:"feeds,omitempty"`
	WebPages        []string       `yaml:"web_pages,omitempty" json:"web_pages,omitempty"`
	Filings         []FilingSource `yaml:"filings,omitempty" json:"filings,omitempty"`
	VideoChannels   []string       `yaml:"video_channels,omitempty" json:"video_channels,omitempty"`
	VideoKeywords   []string       `yaml:"video_keywords,omitempty" json:"video_keywords,omitempty"`
	PaperCategories []string       `yaml:"paper_categories,omitempty" json:"paper_categories,omitempty"`
	PaperQueries    []string       `yaml:"paper_queries,omitempty" json:"paper_queries,omitempty"`
	NewsKeywords    []string       `yaml:"news_keywords,omitempty" json:"news_keywords,omitempty"`
	NewsGeo         string         `yaml:"news_geo,omitempty" json:"news_geo,omitempty"`
}

// Clone returns a deep copy. Task building mutates the copy when merging
// seed sources, never the profile's own config.
func (sc SourcesConfig) Clone() SourcesConfig {
	out := sc
	out.Feeds = append([]string(nil), sc.Feeds...)
	out.WebPages = append([]string(nil), sc.WebPages...)
	out.Filings = append([]FilingSource(nil), sc.Filings...)
	out.VideoChannels = append([]string(nil), sc.VideoChannels...)
	out.VideoKeywords = append([]string(nil), sc.VideoKeywords...)
	out.PaperCategories = append([]string(nil), sc.PaperCategories...)
	out.PaperQueries = append([]string(nil), sc.PaperQueries...)
	out.NewsKeywords = append([]string(nil), sc.NewsKeywords...)
	return out
}

// IsEmpty reports whether no source entries are configured.
func (sc SourcesConfig) IsEmpty() bool {
	return len(sc.Feeds) == 0 && len(sc.WebPages) == 0 && len(sc.Filings) == 0 &&
		len(sc.VideoChannels) == 0 && len(sc.VideoKeywords) == 0 &&
		len(sc.PaperCategories) == 0 && len(sc.PaperQueries) == 0 &&
		len(sc.NewsKeywords) == 0
}

// Schedule bounds how often and how much a notebook collects.
type Schedule struct {
	Frequency      string `yaml:"frequency" json:"frequency"` // "hourly", "daily", "weekly"
	MaxItemsPerRun int    `yaml:"max_items_per_run" json:"max_items_per_run"`
}

// Filters constrain what the gatherer will keep.
type Filters struct {
	MaxAgeDays   int     `yaml:"max_age_days" json:"max_age_days"`
	MinRelevance float64 `yaml:"min_relevance" json:"min_relevance"`
	Language     string  `yaml:"language,omitempty" json:"language,omitempty"`
}

// Profile is the per-notebook research profile, persisted as collector.yaml.
// Mutated only via explicit update; written atomically.
type Profile struct {
	NotebookID      string         `yaml:"notebook_id" json:"notebook_id"`
	Subject         string         `yaml:"subject" json:"subject"`
	Intent          string         `yaml:"intent" json:"intent"`
	FocusAreas      []string       `yaml:"focus_areas,omitempty" json:"focus_areas,omitempty"`
	ExcludedTopics  []string       `yaml:"excluded_topics,omitempty" json:"excluded_topics,omitempty"`
	DisabledSources []string       `yaml:"disabled_sources,omitempty" json:"disabled_sources,omitempty"`
	CollectionMode  CollectionMode `yaml:"collection_mode" json:"collection_mode"`
	ApprovalMode    ApprovalMode   `yaml:"approval_mode" json:"approval_mode"`
	Sources         SourcesConfig  `yaml:"sources" json:"sources"`
	Schedule        Schedule       `yaml:"schedule" json:"schedule"`
	Filters         Filters        `yaml:"filters" json:"filters"`
	CreatedAt       time.Time      `yaml:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `yaml:"updated_at" json:"updated_at"`
}

// =============================================================================
// FETCHED / COLLECTED ITEMS
// =============================================================================

// FetchedItem is the raw output of a fetcher adapter.
type FetchedItem struct {
	Title         string            `json:"title"`
	URL           string            `json:"url,omitempty"`
	Content       string            `json:"content"`
	Summary       string            `json:"summary,omitempty"`
	SourceName    string            `json:"source_name"`
	SourceKind    SourceKind        `json:"source_kind"`
	SourceURL     string            `json:"source_url,omitempty"`
	PublishedDate *time.Time        `json:"published_date,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ContentHash   string            `json:"content_hash"`
	// Links carries outbound URLs seen while parsing, for resource-list
	// detection downstream.
	Links []string `json:"links,omitempty"`
}

// CollectedItem is a fetched item after gatherer processing. Ephemeral until
// approved; approval hands it to the external source store.
type CollectedItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Content     string     `json:"content"`
	Preview     string     `json:"preview"`
	SourceName  string     `json:"source_name"`
	SourceKind  SourceKind `json:"source_kind"`
	CollectedAt time.Time  `json:"collected_at"`

	// Scoring
	RelevanceScore    float64  `json:"relevance_score"`
	SourceTrust       float64  `json:"source_trust"`
	FreshnessScore    float64  `json:"freshness_score"`
	OverallConfidence float64  `json:"overall_confidence"`
	ConfidenceReasons []string `json:"confidence_reasons,omitempty"`

	// Dedup
	ContentHash string `json:"content_hash"`
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// Temporal context
	DeltaSummary     string   `json:"delta_summary,omitempty"`
	IsNewTopic       bool     `json:"is_new_topic"`
	TemporalContext  string   `json:"temporal_context,omitempty"`
	KnowledgeOverlap float64  `json:"knowledge_overlap"`
	RelatedTitles    []string `json:"related_titles,omitempty"`

	Status ItemStatus `json:"status"`
}

// QueueEntry holds a collected item awaiting user decision.
type QueueEntry struct {
	Item      CollectedItem `json:"item"`
	QueuedAt  time.Time     `json:"queued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// HealthRecord tracks one source endpoint's reliability.
type HealthRecord struct {
	SourceName      string        `json:"source_name"`
	Health          SourceHealth  `json:"health"`
	LastSuccess     time.Time     `json:"last_success"`
	LastFailure     time.Time     `json:"last_failure"`
	FailureCount    int           `json:"failure_count"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ItemsCollected  int           `json:"items_collected"`
}

// =============================================================================
// TASKS AND JUDGMENT
// =============================================================================

// CollectionTask is the Supervisor's work order for one gatherer run.
type CollectionTask struct {
	NotebookID          string         `json:"notebook_id"`
	Intent              string         `json:"intent"`
	FocusAreas          []string       `json:"focus_areas,omitempty"`
	Sources             SourcesConfig  `json:"sources"`
	Mode                CollectionMode `json:"mode"`
	AvoidSimilarTo      []string       `json:"avoid_similar_to,omitempty"`
	SupervisorDirective string         `json:"supervisor_directive,omitempty"`
	SpecificQuery       string         `json:"specific_query,omitempty"`
	SmartQueries        []string       `json:"smart_queries,omitempty"`
	Deadline            time.Time      `json:"deadline,omitempty"`
}

// Judgment is the Supervisor's verdict on one collected item.
type Judgment struct {
	ItemID        string           `json:"item_id"`
	Decision      JudgmentDecision `json:"decision"`
	Reason        string           `json:"reason"`
	Confidence    float64          `json:"confidence"`
	Modifications string           `json:"modifications,omitempty"`
}

// =============================================================================
// SIGNALS AND PREFERENCES
// =============================================================================

// Signal is one immutable event in the user-signal log.
type Signal struct {
	NotebookID string            `json:"notebook_id"`
	SignalType SignalType        `json:"signal_type"`
	ItemID     string            `json:"item_id,omitempty"`
	Query      string            `json:"query,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Preferences is the aggregated preference profile derived from signals.
type Preferences struct {
	PreferredTopics  []string `json:"preferred_topics"`
	PreferredSources []string `json:"preferred_sources"`
	RejectedPatterns []string `json:"rejected_patterns"`
	CaptureCount     int      `json:"capture_count"`
	ApprovalRate     float64  `json:"approval_rate"`
	HighlightCount   int      `json:"highlight_count"`
}

// =============================================================================
// DISCOVERY
// =============================================================================

// TimeSensitivity classifies how quickly a research intent goes stale.
type TimeSensitivity string

const (
	SensitivityBreaking TimeSensitivity = "breaking"
	SensitivityDaily    TimeSensitivity = "daily"
	SensitivityWeekly   TimeSensitivity = "weekly"
	SensitivityNormal   TimeSensitivity = "normal"
	SensitivityArchival TimeSensitivity = "archival"
)

// ResearchDepth classifies how deep discovered sources should go.
type ResearchDepth string

const (
	DepthSurface  ResearchDepth = "surface"
	DepthStandard ResearchDepth = "standard"
	DepthDeep     ResearchDepth = "deep"
)

// IntentAnalysis is the structured reading of a notebook's research intent.
type IntentAnalysis struct {
	NotebookPurpose    NotebookPurpose `json:"notebook_purpose"`
	PrimaryTopic       string          `json:"primary_topic"`
	Entities           []string        `json:"entities,omitempty"`
	Industry           string          `json:"industry,omitempty"`
	Competitors        []string        `json:"competitors,omitempty"`
	Keywords           []string        `json:"keywords,omitempty"`
	GeographicFocus    string          `json:"geographic_focus,omitempty"`
	TimeSensitivity    TimeSensitivity `json:"time_sensitivity"`
	ResearchDepth      ResearchDepth   `json:"research_depth"`
	CompanyName        string          `json:"company_name,omitempty"`
	Ticker             string          `json:"ticker,omitempty"`
	IsPrivate          bool            `json:"is_private,omitempty"`
	NeedsClarification bool            `json:"needs_clarification,omitempty"`
}

// SourceAction is the recommended disposition for a discovered source.
type SourceAction string

const (
	ActionAutoApprove SourceAction = "auto_approve"
	ActionSuggest     SourceAction = "suggest"
	ActionSkip        SourceAction = "skip"
)

// DiscoveredSource is one candidate source emitted by discovery.
type DiscoveredSource struct {
	Kind        SourceKind   `json:"kind"`
	Name        string       `json:"name"`
	URL         string       `json:"url,omitempty"`
	Keyword     string       `json:"keyword,omitempty"`
	Filing      *FilingSource `json:"filing,omitempty"`
	Description string       `json:"description,omitempty"`
	Confidence  float64      `json:"confidence"`
	AutoApprove bool         `json:"auto_approve"`
	Action      SourceAction `json:"action"`
	SeedOrigin  bool         `json:"seed_origin,omitempty"` // extracted from proven-valuable existing URLs
}

// =============================================================================
// MEMORY RECORDS
// =============================================================================

// Fact is one working-facts assertion.
type Fact struct {
	Key        string       `json:"key"`
	Value      string       `json:"value"`
	Category   FactCategory `json:"category"`
	Importance Importance   `json:"importance"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Exchange is one role-tagged message in the recent-exchanges log.
type Exchange struct {
	ID         int64     `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	NotebookID string    `json:"notebook_id,omitempty"`
	Topics     []string  `json:"topics,omitempty"`
	Entities   []string  `json:"entities,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Summarized bool      `json:"summarized"`
}

// ArchiveRecord is one immutable long-term archive entry.
type ArchiveRecord struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	ContentType    string     `json:"content_type"`
	SourceType     string     `json:"source_type"`
	SourceNotebook string     `json:"source_notebook,omitempty"`
	Topics         []string   `json:"topics,omitempty"`
	Entities       []string   `json:"entities,omitempty"`
	Importance     Importance `json:"importance"`
	Namespace      Namespace  `json:"namespace"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ArchiveHit is an archive record with its retrieval score.
type ArchiveHit struct {
	Record     ArchiveRecord `json:"record"`
	Similarity float64       `json:"similarity"` // 1 - distance/2, in [0,1]
}
