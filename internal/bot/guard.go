package bot

import "sync"

// DefaultJoinAttempts is how many wrong passcodes lock a user out of the
// current join dialog.
const DefaultJoinAttempts = 3

// JoinGuard counts failed passcode attempts per user. The count spans games
// and clears on lockout or on a successful join.
type JoinGuard struct {
	mu       sync.Mutex
	limit    int
	failures map[int64]int
}

func NewJoinGuard(limit int) *JoinGuard {
	if limit <= 0 {
		limit = DefaultJoinAttempts
	}
	return &JoinGuard{limit: limit, failures: make(map[int64]int)}
}

// Fail records a wrong passcode and reports whether the user is now locked
// out. Locking out clears the counter.
func (g *JoinGuard) Fail(userID int64) (locked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[userID]++
	if g.failures[userID] >= g.limit {
		delete(g.failures, userID)
		return true
	}
	return false
}

func (g *JoinGuard) Reset(userID int64) {
	g.mu.Lock()
	delete(g.failures, userID)
	g.mu.Unlock()
}

func (g *JoinGuard) Failures(userID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures[userID]
}
