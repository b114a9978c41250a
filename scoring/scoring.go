// Package scoring holds the civic score rules. The rules are deterministic
// on purpose: a fixed reward per event, no dependence on report content.
package scoring

// Event is a report lifecycle event that awards civic score.
type Event int

const (
	EventSubmitted Event = iota
	EventResolved
)

const (
	submissionReward = 100
	resolutionBonus  = 50
)

// ForEvent returns the civic score delta for an event. Unknown events
// award nothing.
func ForEvent(e Event) int {
	switch e {
	case EventSubmitted:
		return submissionReward
	case EventResolved:
		return resolutionBonus
	default:
		return 0
	}
}

// Level thresholds. Scores only grow, so levels never regress.
const (
	levelSilver   = 500
	levelGold     = 2000
	levelPlatinum = 5000
)

// LevelForScore maps a civic score to a gamification level.
func LevelForScore(score int) string {
	switch {
	case score >= levelPlatinum:
		return "Platinum"
	case score >= levelGold:
		return "Gold"
	case score >= levelSilver:
		return "Silver"
	default:
		return "Bronze"
	}
}
