package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// replayWindow bounds how far a webhook timestamp may drift from server
// time, in either direction.
const replayWindow = 300 * time.Second

var (
	ErrBadSignature = errors.New("webhook signature mismatch")
	ErrBadTimestamp = errors.New("webhook timestamp invalid")
	ErrReplayWindow = errors.New("webhook timestamp outside replay window")
)

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw request
// body against the shared secret. An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// CheckReplay validates the request timestamp (unix seconds) against the
// replay window. A drift of exactly the window size is still accepted.
func CheckReplay(timestamp string, now time.Time) error {
	if timestamp == "" {
		return ErrBadTimestamp
	}
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	drift := now.Sub(time.Unix(seconds, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > replayWindow {
		return ErrReplayWindow
	}
	return nil
}
