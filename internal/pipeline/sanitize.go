package pipeline

import (
	"regexp"
	"strings"
)

// Error text shown to users must not leak credentials, provider hostnames,
// or other internal detail. The full error is always logged separately.

var (
	keyParamRe = regexp.MustCompile(`(?i)(api[_-]?key|key|token|authorization)=[^\s&"]+`)
	bearerRe   = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`)
	googleKey  = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{10,}`)
	groqKey    = regexp.MustCompile(`gsk_[0-9A-Za-z]{10,}`)
)

var providerHosts = []string{
	"generativelanguage.googleapis.com",
	"googleapis.com",
	"api.groq.com",
	"api.nal.usda.gov",
	"world.openfoodfacts.org",
}

// sanitizeError rewrites an error into a user-facing message.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = keyParamRe.ReplaceAllString(msg, "$1=[redacted]")
	msg = bearerRe.ReplaceAllString(msg, "[redacted]")
	msg = googleKey.ReplaceAllString(msg, "[redacted]")
	msg = groqKey.ReplaceAllString(msg, "[redacted]")
	for _, host := range providerHosts {
		msg = strings.ReplaceAll(msg, host, "external provider")
	}
	return msg
}
