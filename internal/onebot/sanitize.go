package onebot

import (
	"regexp"
	"strconv"
)

var base64Payload = regexp.MustCompile(`base64://[A-Za-z0-9+/=]+`)

// SanitizeForLog replaces inline base64 payloads with their length so that
// image messages do not flood the log.
func SanitizeForLog(b []byte) string {
	return base64Payload.ReplaceAllStringFunc(string(b), func(m string) string {
		return "[base64://_data_omitted_len=" + strconv.Itoa(len(m)-len("base64://")) + "]"
	})
}
