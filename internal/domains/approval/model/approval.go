package model

import (
	"time"
)

// =====================================================
// APPROVAL STATUS CONSTANTS
// =====================================================
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Authority levels in ascending rank. An approver may decide any
// request whose current level they equal or outrank.
const (
	LevelSupervisor = "SUPERVISOR"
	LevelManager    = "MANAGER"
	LevelAdmin      = "ADMIN"
)

var levelRank = map[string]int{
	LevelSupervisor: 1,
	LevelManager:    2,
	LevelAdmin:      3,
}

// LevelRank returns the numeric rank of an authority level, 0 if unknown.
func LevelRank(level string) int {
	return levelRank[level]
}

// =====================================================
// ENTITY: ApprovalRequest
// =====================================================

// ApprovalRequest tracks the sign-off for a refund above the merchant's
// approval threshold. The request walks RequiredLevels: a timeout
// escalates to the next level, and past the last level the configured
// fallback settles it.
type ApprovalRequest struct {
	ID                 string     `json:"id"`
	RefundID           string     `json:"refund_id"`
	MerchantID         string     `json:"merchant_id"`
	Amount             int64      `json:"amount"` // minor units
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	RequiredLevels     []string   `json:"required_levels"`
	CurrentLevel       int        `json:"current_level"`
	Escalations        int        `json:"escalations"`
	Decisions          []Decision `json:"decisions,omitempty"`
	EscalationDeadline time.Time  `json:"escalation_deadline"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int        `json:"version"`
}

// Decision is one recorded approver action.
type Decision struct {
	Level     string    `json:"level"`
	Approver  string    `json:"approver"`
	Approved  bool      `json:"approved"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// RequiredLevel returns the authority level currently allowed to decide.
func (a *ApprovalRequest) RequiredLevel() string {
	if a.CurrentLevel < len(a.RequiredLevels) {
		return a.RequiredLevels[a.CurrentLevel]
	}
	return ""
}

// IsOpen reports whether the request still accepts decisions.
func (a *ApprovalRequest) IsOpen() bool {
	return a.Status == StatusPending
}

// CanDecide reports whether an approver at the given authority level
// may decide this request.
func (a *ApprovalRequest) CanDecide(authorityLevel string) bool {
	required := a.RequiredLevel()
	if required == "" {
		return false
	}
	return LevelRank(authorityLevel) >= LevelRank(required)
}

// PastDeadline reports whether the escalation timer expired.
func (a *ApprovalRequest) PastDeadline(now time.Time) bool {
	return a.IsOpen() && now.After(a.EscalationDeadline)
}

// Escalate advances to the next required level and rearms the deadline.
// Returns false when there is no further level to escalate to.
func (a *ApprovalRequest) Escalate(now time.Time, window time.Duration) bool {
	if a.CurrentLevel+1 >= len(a.RequiredLevels) {
		return false
	}
	a.CurrentLevel++
	a.Escalations++
	a.EscalationDeadline = now.Add(window)
	a.UpdatedAt = now
	return true
}

// Resolve records the decision and closes the request.
func (a *ApprovalRequest) Resolve(approved bool, level, approver, note string) {
	now := time.Now().UTC()
	a.Decisions = append(a.Decisions, Decision{
		Level:     level,
		Approver:  approver,
		Approved:  approved,
		Note:      note,
		DecidedAt: now,
	})
	if approved {
		a.Status = StatusApproved
	} else {
		a.Status = StatusRejected
	}
	a.UpdatedAt = now
}
