package world

import "sync"

// AggroList tracks damage dealt to one mob per attacker.
type AggroList struct {
	mu      sync.Mutex
	entries map[string]float64
}

// NewAggroList creates an empty list.
func NewAggroList() *AggroList {
	return &AggroList{entries: make(map[string]float64, 4)}
}

// Add records amount of hate from attacker. Non-positive amounts are ignored.
func (l *AggroList) Add(attackerID string, amount float64) {
	if attackerID == "" || amount <= 0 {
		return
	}
	l.mu.Lock()
	l.entries[attackerID] += amount
	l.mu.Unlock()
}

// Hate returns the hate accumulated from attacker.
func (l *AggroList) Hate(attackerID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[attackerID]
}

// MostHated returns the attacker with the highest hate. Ties go to the smaller id.
func (l *AggroList) MostHated() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		best string
		top  float64
	)
	for id, h := range l.entries {
		if best == "" || h > top || (h == top && id < best) {
			best, top = id, h
		}
	}
	return best, best != ""
}

// Forget drops attacker from the list.
func (l *AggroList) Forget(attackerID string) {
	l.mu.Lock()
	delete(l.entries, attackerID)
	l.mu.Unlock()
}

// Len returns the number of attackers.
func (l *AggroList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
