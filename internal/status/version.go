package status

import (
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// readVersion returns the text after the last ':' in the version file,
// trimmed. Values that parse as semver are normalized to "vX.Y.Z". A missing
// or empty file yields nil.
func readVersion(path string) *string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	text := string(data)
	if i := strings.LastIndex(text, ":"); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if v, err := semver.NewVersion(text); err == nil {
		text = "v" + v.String()
	}
	return &text
}
