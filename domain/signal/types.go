package signal

import (
	"time"

	"govigil/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// Sex is the coded patient sex as delivered by the ingestion collaborator
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "U"
)

// CaseRecord is one spontaneous adverse-event report. Records are immutable
// once loaded; the engine only reads them. Terms arrive already normalized
// (lowercased, whitespace-collapsed) from the ingestion collaborator.
type CaseRecord struct {
	ID          core.CaseID `json:"id"`
	Drugs       []string    `json:"drugs"`
	Reactions   []string    `json:"reactions"`
	Age         float64     `json:"age"`      // years; <0 means unknown
	Sex         Sex         `json:"sex"`
	Country     string      `json:"country"`
	Serious     bool        `json:"serious"`
	OnsetDate   time.Time   `json:"onset_date"`
	ReportDate  time.Time   `json:"report_date"`
	Outcome     string      `json:"outcome"`
}

// HasDrug reports whether the case lists the (normalized) drug term
func (c *CaseRecord) HasDrug(term string) bool {
	for _, d := range c.Drugs {
		if d == term {
			return true
		}
	}
	return false
}

// HasReaction reports whether the case lists the (normalized) reaction term
func (c *CaseRecord) HasReaction(term string) bool {
	for _, r := range c.Reactions {
		if r == term {
			return true
		}
	}
	return false
}

// CaseTable is an in-memory snapshot of normalized case records plus the
// dataset version that identifies the snapshot for caching. The table is
// treated as read-only/shared during a request.
type CaseTable struct {
	Version core.DatasetVersion `json:"version"`
	Cases   []CaseRecord        `json:"cases"`
}

// Size returns the number of cases in the table
func (t *CaseTable) Size() int { return len(t.Cases) }

// Filters restricts the case universe before counting. A zero value applies
// no restriction. The same filter set always applies to the whole universe,
// never to individual contingency cells.
type Filters struct {
	MinAge      float64   `json:"min_age,omitempty"`
	MaxAge      float64   `json:"max_age,omitempty"`
	Sex         Sex       `json:"sex,omitempty"`
	Country     string    `json:"country,omitempty"`
	FromDate    time.Time `json:"from_date,omitempty"`
	ToDate      time.Time `json:"to_date,omitempty"`
	OnlySerious bool      `json:"only_serious,omitempty"`
}

// Matches reports whether a case survives the filter
func (f *Filters) Matches(c *CaseRecord) bool {
	if f.MinAge > 0 && (c.Age < f.MinAge) {
		return false
	}
	if f.MaxAge > 0 && (c.Age < 0 || c.Age > f.MaxAge) {
		return false
	}
	if f.Sex != "" && c.Sex != f.Sex {
		return false
	}
	if f.Country != "" && c.Country != f.Country {
		return false
	}
	if !f.FromDate.IsZero() && c.ReportDate.Before(f.FromDate) {
		return false
	}
	if !f.ToDate.IsZero() && c.ReportDate.After(f.ToDate) {
		return false
	}
	if f.OnlySerious && !c.Serious {
		return false
	}
	return true
}

// ContingencyCell holds the 2x2 counts for one (drug, reaction) pair against
// a reference case set.
// INVARIANTS:
// - A+B+C+D equals the total cases in the filtered scope
// - all counts >= 0
type ContingencyCell struct {
	A int `json:"a"` // drug + reaction
	B int `json:"b"` // drug only
	C int `json:"c"` // reaction only
	D int `json:"d"` // neither
}

// Total returns the size of the counting universe
func (c ContingencyCell) Total() int { return c.A + c.B + c.C + c.D }

// Expected returns the expected count for cell A under independence
func (c ContingencyCell) Expected() float64 {
	n := c.Total()
	if n == 0 {
		return 0
	}
	return float64(c.A+c.B) * float64(c.A+c.C) / float64(n)
}

// Valid reports whether all counts are non-negative
func (c ContingencyCell) Valid() bool {
	return c.A >= 0 && c.B >= 0 && c.C >= 0 && c.D >= 0
}

// HasSmallCell reports whether any cell is below the exact-test threshold
func (c ContingencyCell) HasSmallCell() bool {
	return c.A < 5 || c.B < 5 || c.C < 5 || c.D < 5
}

// ============================================================================
// METRIC RESULTS
// ============================================================================

// Estimate is one metric value with its 95% interval. Undefined metrics are
// reported with Computable=false and a reason, never silently zeroed.
// INVARIANT: when Computable, Lower <= Value <= Upper whenever the interval
// is defined.
type Estimate struct {
	Value      float64 `json:"value"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Computable bool    `json:"computable"`
	Reason     string  `json:"reason,omitempty"` // why not computable
}

// Defined constructs a computable estimate
func Defined(value, lower, upper float64) Estimate {
	return Estimate{Value: value, Lower: lower, Upper: upper, Computable: true}
}

// Undefined constructs a not-computable estimate with a reason
func Undefined(reason string) Estimate {
	return Estimate{Computable: false, Reason: reason}
}

// SignalMetrics is the full set of classical disproportionality metrics for
// one (drug, reaction) pair. Immutable value, derived per request.
type SignalMetrics struct {
	Drug     string          `json:"drug"`
	Reaction string          `json:"reaction"`
	Cell     ContingencyCell `json:"cell"`

	PRR  Estimate `json:"prr"`
	ROR  Estimate `json:"ror"`
	EBGM Estimate `json:"ebgm"` // Lower/Upper are EB05/EB95
	IC   Estimate `json:"ic"`   // Lower/Upper are IC025/IC975

	// BCPNN is the original Bate formulation: expectation of the information
	// component with a variance-based interval.
	BCPNN Estimate `json:"bcpnn"`

	ChiSquare    Estimate `json:"chi_square"` // Yates-corrected statistic; interval unused
	ChiSquareP   float64  `json:"chi_square_p"`
	FisherExactP float64  `json:"fisher_exact_p"`

	// SignalFlag is true when the configured thresholds are all met
	// (default: PRR >= 2, chi-square >= 4, a >= 3).
	SignalFlag bool           `json:"signal_flag"`
	ComputedAt core.Timestamp `json:"computed_at"`
}

// Thresholds are the configurable signal-flag cutoffs
type Thresholds struct {
	MinPRR       float64 `json:"min_prr"`
	MinChiSquare float64 `json:"min_chi_square"`
	MinCases     int     `json:"min_cases"`
}

// DefaultThresholds returns the conventional PRR>=2, chi2>=4, a>=3 rule
func DefaultThresholds() Thresholds {
	return Thresholds{MinPRR: 2.0, MinChiSquare: 4.0, MinCases: 3}
}

// ============================================================================
// RANKING
// ============================================================================

// RankFeatures are the cheap per-candidate inputs the ranking engine scores
// before any exact statistics run. All feature values are in [0,1] except
// CaseCount.
type RankFeatures struct {
	CaseCount   int     `json:"case_count"`
	CountScore  float64 `json:"count_score"` // log-scaled CaseCount in [0,1]
	Rarity      float64 `json:"rarity"`      // inverse reaction frequency
	Seriousness float64 `json:"seriousness"` // proportion of serious cases
	Recency     float64 `json:"recency"`     // weighted toward recent reports
}

// RankedSignal is one scored (drug, reaction) candidate.
// INVARIANT: Score is in [0,1]; QuantumRank and ClassicalRank are 1-based.
type RankedSignal struct {
	Drug          string       `json:"drug"`
	Reaction      string       `json:"reaction"`
	Features      RankFeatures `json:"features"`
	Score         float64      `json:"score"`
	QuantumRank   int          `json:"quantum_rank"`
	ClassicalRank int          `json:"classical_rank"` // by raw case count
}

// ============================================================================
// CLUSTERING
// ============================================================================

// ClusterSummary describes one patient subgroup of a signal's case subset.
// Computed on demand; not persisted beyond the request.
type ClusterSummary struct {
	ClusterID  int           `json:"cluster_id"`
	Size       int           `json:"size"`
	MeanAge    float64       `json:"mean_age"`
	PctSerious float64       `json:"pct_serious"`
	PctSex     map[Sex]float64 `json:"pct_sex"`
	CaseIDs    []core.CaseID `json:"case_ids"`
}

// ============================================================================
// DUPLICATE DETECTION
// ============================================================================

// DetectionMode selects exact or near-duplicate matching
type DetectionMode string

const (
	ModeExact DetectionMode = "exact"
	ModeNear  DetectionMode = "near"
)

// DuplicateAction is the suggested disposition for a duplicate group
type DuplicateAction string

const (
	ActionMerge   DuplicateAction = "merge"
	ActionInspect DuplicateAction = "inspect"
	ActionKeep    DuplicateAction = "keep"
)

// DuplicateGroup is one connected component of likely-duplicate cases.
// Groups are disjoint: no case appears in two groups.
type DuplicateGroup struct {
	CaseIDs    []core.CaseID   `json:"case_ids"`
	Similarity float64         `json:"similarity"` // minimum pairwise score inside the group
	Signature  core.Hash       `json:"signature,omitempty"` // exact mode only
	Action     DuplicateAction `json:"action"`
}

// ============================================================================
// EXECUTION
// ============================================================================

// Operation names the routable analysis operations
type Operation string

const (
	OpComputeSignal  Operation = "compute_signal"
	OpRankCandidates Operation = "rank_candidates"
	OpClusterSignal  Operation = "cluster_signal"
	OpFindDuplicates Operation = "find_duplicates"
	// OpTopSignals is the lazy pipeline: rank everything cheaply, then
	// compute exact statistics for only the top-K candidates.
	OpTopSignals Operation = "top_signals"
)

// Venue is where an operation executes
type Venue string

const (
	VenueLocal  Venue = "local"  // constrained cooperative runtime
	VenueRemote Venue = "remote" // server worker pool
)

// CacheEntry is a memoized operation result stamped with the dataset version
// it was computed against. Entries for older versions are never served.
type CacheEntry struct {
	Fingerprint core.Fingerprint    `json:"fingerprint"`
	Version     core.DatasetVersion `json:"version"`
	Result      interface{}         `json:"result"`
	Venue       Venue               `json:"venue"`
	ComputedAt  core.Timestamp      `json:"computed_at"`
}
