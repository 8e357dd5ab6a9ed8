package adyen

// Config for the Adyen adapter.
type Config struct {
	APIURL  string // https://checkout-test.adyen.com/v71
	HMACKey string // hex-encoded HMAC key for notification webhooks
}

func (c *Config) RefundURL(paymentPspReference string) string {
	return c.APIURL + "/payments/" + paymentPspReference + "/refunds"
}
