package braintree

// Config for the Braintree adapter. Braintree's production API is
// GraphQL-only; refunds and lookups go through the single endpoint.
type Config struct {
	APIURL        string // https://payments.braintree-api.com/graphql
	WebhookSecret string
}

func (c *Config) GraphQLURL() string {
	return c.APIURL
}
