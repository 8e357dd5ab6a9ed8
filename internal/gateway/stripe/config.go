package stripe

// Config for the Stripe adapter.
type Config struct {
	APIURL        string // https://api.stripe.com
	WebhookSecret string // whsec_... signing secret
}

func (c *Config) RefundURL() string {
	return c.APIURL + "/v1/refunds"
}

func (c *Config) RefundStatusURL(refundID string) string {
	return c.APIURL + "/v1/refunds/" + refundID
}
