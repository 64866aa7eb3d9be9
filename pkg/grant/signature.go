package grant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrymomot/iapkit/pkg/requestid"
)

const (
	HeaderSignature = "X-Grant-Signature"
	HeaderTimestamp = "X-Grant-Timestamp"
	// HeaderRequestID is shared by every attempt of one Send.
	HeaderRequestID = requestid.Header
)

// Sign computes the signature headers for payload.
// Signature is hex(HMAC-SHA256(secret, "<unix timestamp>.<payload>")).
func Sign(secret string, payload []byte, at time.Time) map[string]string {
	ts := at.Unix()
	return map[string]string{
		HeaderSignature: signature(secret, ts, payload),
		HeaderTimestamp: strconv.FormatInt(ts, 10),
	}
}

// Verify checks a signature produced by Sign. Timestamps older than
// tolerance are rejected; a zero tolerance disables the age check.
func Verify(secret string, payload []byte, sig, timestamp string, tolerance time.Duration) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if tolerance > 0 && time.Since(time.Unix(ts, 0)).Abs() > tolerance {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signature(secret, ts, payload)))
}

func signature(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", ts, payload)
	return hex.EncodeToString(h.Sum(nil))
}
