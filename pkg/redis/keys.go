package redis

import "strings"

const (
	keyNamespace = "cl"

	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
	watermarkPrefix   = "watermark"
)

// IdempotencyKey namespaces a client-supplied key under its caller scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(policy, subject string) string {
	return joinKey(rateLimitPrefix, policy, subject)
}

// LockKey names a mutual-exclusion lock, e.g. one per coach for payouts.
func (c *Client) LockKey(scope, id string) string {
	return joinKey(lockPrefix, scope, id)
}

func (c *Client) WatermarkKey(job string) string {
	return joinKey(watermarkPrefix, job)
}

// joinKey builds cl:<part>:<part>..., skipping blank parts.
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
