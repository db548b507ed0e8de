// Package finding defines the Finding domain entity and types.
// A Finding is a normalized issue or security hotspot tracked locally,
// independent of the upstream SonarQube lifecycle.
package finding

// Severity is the upstream severity vocabulary, ordered
// INFO < MINOR < MAJOR < CRITICAL < BLOCKER. HIGH is an alias of BLOCKER:
// issues reported as BLOCKER are projected to the HIGH label, and hotspot
// severities arrive already expressed as HIGH/MEDIUM/LOW.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityMinor    Severity = "MINOR"
	SeverityLow      Severity = "LOW"
	SeverityMajor    Severity = "MAJOR"
	SeverityMedium   Severity = "MEDIUM"
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityBlocker  Severity = "BLOCKER"
)

// severityRank orders severities for comparison. HIGH and BLOCKER share the
// top rank, LOW ranks with MINOR and MEDIUM with MAJOR.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityMinor:    1,
	SeverityLow:      1,
	SeverityMajor:    2,
	SeverityMedium:   2,
	SeverityCritical: 3,
	SeverityHigh:     4,
	SeverityBlocker:  4,
}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the comparable position of the severity. Unknown severities
// rank below INFO.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Normalize projects the severity onto the single HIGH/MEDIUM/LOW scale used
// by scans, trend snapshots and reports. BLOCKER always yields HIGH.
func (s Severity) Normalize() Severity {
	switch s {
	case SeverityBlocker, SeverityCritical, SeverityHigh:
		return SeverityHigh
	case SeverityMajor, SeverityMedium:
		return SeverityMedium
	case SeverityMinor, SeverityLow, SeverityInfo:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// HotspotSeverity derives a severity from a hotspot vulnerabilityProbability
// value. Unknown or absent probabilities default to MEDIUM; a BLOCKER alias is
// coerced to HIGH.
func HotspotSeverity(probability string) Severity {
	switch probability {
	case "HIGH", "BLOCKER":
		return SeverityHigh
	case "MEDIUM":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Type is the upstream finding type.
type Type string

const (
	TypeVulnerability   Type = "VULNERABILITY"
	TypeBug             Type = "BUG"
	TypeCodeSmell       Type = "CODE_SMELL"
	TypeSecurityHotspot Type = "SECURITY_HOTSPOT"
)

// IsValid reports whether t is a known finding type.
func (t Type) IsValid() bool {
	switch t {
	case TypeVulnerability, TypeBug, TypeCodeSmell, TypeSecurityHotspot:
		return true
	}
	return false
}

// Upstream status values as reported by the server. TO_REVIEW and REVIEWED
// apply to hotspots only.
const (
	StatusOpen      = "OPEN"
	StatusConfirmed = "CONFIRMED"
	StatusReopened  = "REOPENED"
	StatusResolved  = "RESOLVED"
	StatusClosed    = "CLOSED"
	StatusToReview  = "TO_REVIEW"
	StatusReviewed  = "REVIEWED"
)

// IsTerminalStatus reports whether an upstream status means the finding is no
// longer active upstream. Terminal findings are never stale-marked again.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusResolved, StatusClosed, StatusReviewed:
		return true
	}
	return false
}

// LocalStatus is the local triage workflow state, fully independent of the
// upstream lifecycle.
type LocalStatus string

const (
	LocalStatusNew           LocalStatus = "new"
	LocalStatusTriaged       LocalStatus = "triaged"
	LocalStatusInProgress    LocalStatus = "in_progress"
	LocalStatusResolved      LocalStatus = "resolved"
	LocalStatusFalsePositive LocalStatus = "false_positive"
	LocalStatusAccepted      LocalStatus = "accepted"
)

// localTransitions enumerates the allowed workflow moves.
var localTransitions = map[LocalStatus][]LocalStatus{
	LocalStatusNew:           {LocalStatusTriaged, LocalStatusInProgress, LocalStatusResolved, LocalStatusFalsePositive, LocalStatusAccepted},
	LocalStatusTriaged:       {LocalStatusInProgress, LocalStatusResolved, LocalStatusFalsePositive, LocalStatusAccepted},
	LocalStatusInProgress:    {LocalStatusTriaged, LocalStatusResolved, LocalStatusFalsePositive, LocalStatusAccepted},
	LocalStatusResolved:      {LocalStatusTriaged, LocalStatusInProgress},
	LocalStatusFalsePositive: {LocalStatusTriaged},
	LocalStatusAccepted:      {LocalStatusTriaged, LocalStatusInProgress},
}

// IsValid reports whether s is a known local status.
func (s LocalStatus) IsValid() bool {
	_, ok := localTransitions[s]
	return ok
}

// CanTransitionTo reports whether the workflow allows moving to next.
func (s LocalStatus) CanTransitionTo(next LocalStatus) bool {
	for _, allowed := range localTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MinPriority and MaxPriority bound the local priority scale.
const (
	MinPriority = 0
	MaxPriority = 4
)
