package writer

import (
	"github.com/grafana/regexp"
)

// MaxCheckableURLLength is the longest URL still considered a plain stream
// link. Longer ones usually embed expiring session data.
const MaxCheckableURLLength = 250

var credentialRe = regexp.MustCompile(`(?i)token|auth|login|key|signature`)

// IsUncheckable reports whether an offline URL probably failed because of
// expiring credentials rather than a dead stream.
func IsUncheckable(url string) bool {
	return len(url) > MaxCheckableURLLength || credentialRe.MatchString(url)
}
