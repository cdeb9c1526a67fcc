package handlers

import "sync"

// ReportModes holds the users who pressed the "Submit report" button. Only
// their next private photo is taken as a report.
type ReportModes struct {
	mu    sync.Mutex
	users map[int64]struct{}
}

func NewReportModes() *ReportModes {
	return &ReportModes{users: make(map[int64]struct{})}
}

// Arm makes the user's next photo a report.
func (r *ReportModes) Arm(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = struct{}{}
}

func (r *ReportModes) Armed(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok
}

// Disarm leaves report mode after a report was accepted.
func (r *ReportModes) Disarm(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}
