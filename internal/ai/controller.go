package ai

// Intention is the AI state of a mob.
type Intention int32

const (
	// IntentionIdle - no hostile target, nothing to do
	IntentionIdle Intention = iota
	// IntentionAttack - casting at the most hated attacker
	IntentionAttack
)

// String returns human-readable intention name
func (i Intention) String() string {
	switch i {
	case IntentionIdle:
		return "IDLE"
	case IntentionAttack:
		return "ATTACK"
	default:
		return "UNKNOWN"
	}
}

// Controller represents AI controller interface for mobs
type Controller interface {
	// Start starts AI controller
	Start()

	// Stop stops AI controller
	Stop()

	// SetIntention sets AI intention
	SetIntention(intention Intention)

	// CurrentIntention returns current AI intention
	CurrentIntention() Intention

	// Tick performs AI tick (called on the simulation goroutine every tick)
	Tick(tick uint64)
}
