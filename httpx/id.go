package httpx

import (
	"github.com/google/uuid"

	"dqx0.com/go/rawhttp/httpx/header"
)

func genID() string {
	return uuid.NewString()
}

// requestID returns the peer supplied X-Request-ID, or a new one.
func requestID(h *header.Header) string {
	if id := h.Text("X-Request-ID"); id != "" && len(id) <= 128 {
		return id
	}
	return genID()
}
