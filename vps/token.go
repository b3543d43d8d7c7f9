package vps

import "sync"

// TokenHolder is the only state shared across localization attempts. Many
// readers, one writer: a successful Authenticate.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

func (h *TokenHolder) Get() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token, h.token != ""
}

func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *TokenHolder) Clear() {
	h.Set("")
}

func (h *TokenHolder) IsAuthenticated() bool {
	_, ok := h.Get()
	return ok
}
