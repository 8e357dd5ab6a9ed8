package service

import (
	"bytes"
	"fmt"
	"text/template"

	"refunds-backend/internal/shared"
)

// =====================================================
// MESSAGE TEMPLATES
// =====================================================

type messageTemplate struct {
	subject string
	body    *template.Template
}

// templateData is what every template renders against.
type templateData struct {
	RefundID   string
	MerchantID string
	Data       map[string]interface{}
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

var messageTemplates = map[shared.EventKind]messageTemplate{
	shared.EventRefundCompleted: {
		subject: "Refund completed",
		body: mustTemplate("refund_completed",
			`Refund {{.RefundID}} has completed and the funds are on their way.
`),
	},
	shared.EventRefundFailed: {
		subject: "Refund failed",
		body: mustTemplate("refund_failed",
			`Refund {{.RefundID}} could not be processed{{with .Data.error_code}} (code {{.}}){{end}}.
Review the refund in your dashboard for details.
`),
	},
	shared.EventRefundRejected: {
		subject: "Refund rejected",
		body: mustTemplate("refund_rejected",
			`Refund {{.RefundID}} was rejected{{with .Data.actor}} by {{.}}{{end}}{{with .Data.reason}}: {{.}}{{end}}.
`),
	},
	shared.EventRefundCanceled: {
		subject: "Refund canceled",
		body: mustTemplate("refund_canceled",
			`Refund {{.RefundID}} was canceled{{with .Data.reason}}: {{.}}{{end}}.
`),
	},
	shared.EventApprovalRequested: {
		subject: "Refund approval required",
		body: mustTemplate("approval_requested",
			`Refund {{.RefundID}} needs sign-off{{with .Data.required_level}} at level {{.}}{{end}}.
Please review it before the escalation deadline.
`),
	},
	shared.EventApprovalEscalated: {
		subject: "Refund approval escalated",
		body: mustTemplate("approval_escalated",
			`The approval for refund {{.RefundID}} was not decided in time and has escalated{{with .Data.required_level}} to level {{.}}{{end}}.
`),
	},
}

// renderMessage produces the subject and body for an event.
func renderMessage(event shared.EventKind, data templateData) (subject, body string, err error) {
	tmpl, ok := messageTemplates[event]
	if !ok {
		return "", "", fmt.Errorf("no template for event %q", event)
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render template for %s: %w", event, err)
	}
	return tmpl.subject, buf.String(), nil
}
