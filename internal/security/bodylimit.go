package security

import (
	"net/http"

	"github.com/noah-isme/storeengine/internal/common"
)

// DefaultMaxBody bounds JSON payloads. A cart with a few hundred lines fits
// comfortably.
const DefaultMaxBody int64 = 1 << 20

// BodyLimit caps request payload size.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 for declared oversized bodies and caps the reader
// for chunked ones, so decoders fail instead of buffering without bound.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	max := b.Max
	if max <= 0 {
		max = DefaultMaxBody
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", map[string]int64{"maxBytes": max})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next.ServeHTTP(w, r)
	})
}
