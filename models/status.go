package models

import "fmt"

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusNew        ReportStatus = "New"
	StatusPending    ReportStatus = "Pending"
	StatusAIAnalyzed ReportStatus = "AI Analyzed"
	StatusDispatched ReportStatus = "Dispatched"
	StatusInProgress ReportStatus = "In Progress"
	StatusResolved   ReportStatus = "Resolved"
	StatusRejected   ReportStatus = "Rejected"
)

// transitions is the single source of truth for legal status changes.
// Resolved and Rejected are terminal.
var transitions = map[ReportStatus][]ReportStatus{
	StatusNew:        {StatusPending, StatusAIAnalyzed, StatusDispatched, StatusRejected},
	StatusPending:    {StatusDispatched, StatusRejected},
	StatusAIAnalyzed: {StatusDispatched, StatusRejected},
	StatusDispatched: {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected},
	StatusResolved:   {},
	StatusRejected:   {},
}

// ParseReportStatus validates a raw status string.
func ParseReportStatus(s string) (ReportStatus, error) {
	st := ReportStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown report status %q", s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is a legal status change.
// A same-status change is always legal: it produces a note-only audit entry.
func CanTransition(from, to ReportStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status changes are permitted.
func (s ReportStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// IsOpen reports whether the report still counts against an assigned truck.
func (s ReportStatus) IsOpen() bool {
	return !s.IsTerminal()
}

// TruckStatus is the operational state of a fleet unit.
type TruckStatus string

const (
	TruckAvailable   TruckStatus = "Available"
	TruckEnRoute     TruckStatus = "En Route"
	TruckOnSite      TruckStatus = "On-Site"
	TruckMaintenance TruckStatus = "Offline/Maintenance"
)

// ParseTruckStatus validates a raw truck status string.
func ParseTruckStatus(s string) (TruckStatus, error) {
	switch st := TruckStatus(s); st {
	case TruckAvailable, TruckEnRoute, TruckOnSite, TruckMaintenance:
		return st, nil
	}
	return "", fmt.Errorf("unknown truck status %q", s)
}

// Severity is the assessed impact of a reported issue.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity validates a raw severity string. Empty input defaults
// to Medium.
func ParseSeverity(s string) (Severity, error) {
	if s == "" {
		return SeverityMedium, nil
	}
	switch sv := Severity(s); sv {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sv, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}
