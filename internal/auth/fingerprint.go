package auth

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/tidewatch/accesscore/internal/models"
)

// FingerprintLength is the number of hex characters in a device fingerprint.
const FingerprintLength = 16

// DeviceFingerprint derives a stable identifier from client-supplied browser
// metadata. It is a pure function of its input: identical metadata yields an
// identical fingerprint across process restarts.
//
// The input set (user agent, accept-language, accept-encoding) is
// deliberately low entropy. The fingerprint is a continuity heuristic for
// anomaly detection, not an access-control boundary; it does not resist
// deliberate spoofing.
func DeviceFingerprint(meta models.RequestMetadata) string {
	data := strings.Join([]string{
		normalizeField(meta.UserAgent),
		normalizeField(meta.AcceptLanguage),
		normalizeField(meta.AcceptEncoding),
	}, "|")

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)[:FingerprintLength]
}

func normalizeField(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
