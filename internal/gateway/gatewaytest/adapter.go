package gatewaytest

import (
	"context"
	"sync"

	"refunds-backend/internal/gateway"
)

// Adapter is a configurable in-memory gateway used by service and
// worker tests. Responses are scripted per call in FIFO order; when
// the script runs out the last entry repeats.
type Adapter struct {
	mu sync.Mutex

	GatewayType string

	ProcessResults []ScriptedResult
	CheckResults   []ScriptedResult
	Events         []gateway.NormalizedEvent
	SignatureValid bool

	// ProcessHook runs inside ProcessRefund, before the scripted result
	// is returned. Tests use it to change conditions mid-call.
	ProcessHook func()

	ProcessCalls []gateway.RefundRequest
	CheckCalls   []string

	processIdx int
	checkIdx   int
}

type ScriptedResult struct {
	Result *gateway.RefundResult
	Err    error
}

func New(gatewayType string) *Adapter {
	return &Adapter{GatewayType: gatewayType, SignatureValid: true}
}

func (a *Adapter) Type() string {
	return a.GatewayType
}

func (a *Adapter) ProcessRefund(
	_ context.Context,
	req gateway.RefundRequest,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	a.mu.Lock()
	a.ProcessCalls = append(a.ProcessCalls, req)
	scripted := take(a.ProcessResults, &a.processIdx)
	hook := a.ProcessHook
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	return scripted.Result, scripted.Err
}

func (a *Adapter) CheckRefundStatus(
	_ context.Context,
	gatewayRefundID string,
	_ gateway.Credentials,
) (*gateway.RefundResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CheckCalls = append(a.CheckCalls, gatewayRefundID)
	scripted := take(a.CheckResults, &a.checkIdx)
	return scripted.Result, scripted.Err
}

func (a *Adapter) ValidateWebhookSignature([]byte, string, string) bool {
	return a.SignatureValid
}

func (a *Adapter) ParseWebhookEvent([]byte) ([]gateway.NormalizedEvent, error) {
	return a.Events, nil
}

func take(script []ScriptedResult, idx *int) ScriptedResult {
	if len(script) == 0 {
		return ScriptedResult{Result: &gateway.RefundResult{
			Success: true,
			Status:  gateway.StatusCompleted,
		}}
	}
	if *idx >= len(script) {
		return script[len(script)-1]
	}
	out := script[*idx]
	*idx++
	return out
}
