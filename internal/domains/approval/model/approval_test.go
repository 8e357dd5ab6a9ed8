package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newRequest() *ApprovalRequest {
	return &ApprovalRequest{
		ID:                 "a-1",
		RefundID:           "r-1",
		MerchantID:         "M1",
		Amount:             250000,
		Currency:           "USD",
		Status:             StatusPending,
		RequiredLevels:     []string{LevelSupervisor, LevelManager, LevelAdmin},
		CurrentLevel:       0,
		EscalationDeadline: time.Now().UTC().Add(4 * time.Hour),
		Version:            1,
	}
}

func TestRequiredLevelWalksChain(t *testing.T) {
	req := newRequest()
	assert.Equal(t, LevelSupervisor, req.RequiredLevel())

	req.CurrentLevel = 2
	assert.Equal(t, LevelAdmin, req.RequiredLevel())

	req.CurrentLevel = 3
	assert.Equal(t, "", req.RequiredLevel())
}

func TestCanDecideByRank(t *testing.T) {
	req := newRequest()

	assert.True(t, req.CanDecide(LevelSupervisor))
	assert.True(t, req.CanDecide(LevelAdmin), "higher rank may decide lower levels")

	req.CurrentLevel = 1
	assert.False(t, req.CanDecide(LevelSupervisor), "lower rank may not decide escalated requests")
	assert.True(t, req.CanDecide(LevelManager))

	assert.False(t, req.CanDecide("INTERN"), "unknown levels rank zero")
}

func TestCanDecidePastLastLevel(t *testing.T) {
	req := newRequest()
	req.CurrentLevel = len(req.RequiredLevels)

	assert.False(t, req.CanDecide(LevelAdmin))
}

func TestEscalateAdvancesAndRearms(t *testing.T) {
	req := newRequest()
	now := time.Now().UTC()

	assert.True(t, req.Escalate(now, 4*time.Hour))
	assert.Equal(t, 1, req.CurrentLevel)
	assert.Equal(t, 1, req.Escalations)
	assert.Equal(t, now.Add(4*time.Hour), req.EscalationDeadline)

	assert.True(t, req.Escalate(now, 4*time.Hour))
	assert.False(t, req.Escalate(now, 4*time.Hour), "no level past the last")
	assert.Equal(t, 2, req.CurrentLevel)
}

func TestPastDeadline(t *testing.T) {
	req := newRequest()
	req.EscalationDeadline = time.Now().UTC().Add(-time.Minute)

	assert.True(t, req.PastDeadline(time.Now().UTC()))

	req.Status = StatusApproved
	assert.False(t, req.PastDeadline(time.Now().UTC()), "closed requests never escalate")
}

func TestResolveClosesRequest(t *testing.T) {
	req := newRequest()
	req.Resolve(true, LevelSupervisor, "approver@x", "looks fine")

	assert.Equal(t, StatusApproved, req.Status)
	assert.False(t, req.IsOpen())
	assert.Len(t, req.Decisions, 1)
	assert.Equal(t, "approver@x", req.Decisions[0].Approver)

	rejected := newRequest()
	rejected.Resolve(false, LevelManager, "approver@y", "suspicious")
	assert.Equal(t, StatusRejected, rejected.Status)
}
