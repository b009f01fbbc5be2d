package insights

import "time"

// Attribution windows the platform counts conversions under. A conversion
// may be attributed up to 28 days after ad exposure, which is why report
// windows carry a 28-day trailing context.
var AllActionAttributionWindows = []string{
	"1d_click",
	"7d_click",
	"28d_click",
	"1d_view",
	"7d_view",
	"28d_view",
}

// Action breakdown dimensions requested on every report.
var AllActionBreakdowns = []string{
	"action_type",
	"action_target_id",
	"action_destination",
}

// Breakdowns maps each insights stream variant to its breakdown dimensions.
var Breakdowns = map[string][]string{
	"ads_insights":                      {},
	"ads_insights_age_and_gender":       {"age", "gender"},
	"ads_insights_country":              {"country"},
	"ads_insights_placement_and_device": {"placement", "impression_device"},
}

// Report parameter defaults.
const (
	// DefaultPageSize is the result page size requested per report.
	DefaultPageSize = 100

	// DefaultTimeIncrement aggregates results per single day.
	DefaultTimeIncrement = 1
)

// Params is one immutable report-generation window: a bounded date range
// plus the query parameters for the remote report request. Windows are
// produced, consumed, and discarded; only the resulting watermark survives.
type Params struct {
	// Since and Until bound the reported date range, inclusive.
	// Invariant: Since <= Until; by construction Until-Since is the
	// scheduler's lookback (28 days).
	Since time.Time
	Until time.Time

	Level                    string
	Breakdowns               []string
	ActionBreakdowns         []string
	ActionAttributionWindows []string
	Fields                   []string
	TimeIncrement            int
	Limit                    int
}
