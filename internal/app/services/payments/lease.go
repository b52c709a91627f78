package payments

import (
	"strings"
	"sync"
)

// leaseTable hands out one exclusive lock per (partner, token) channel so
// concurrent CreatePayment calls cannot both pass the balance check before
// either records its payment.
type leaseTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func leaseKey(partner, token string) string {
	return strings.ToLower(partner) + "|" + strings.ToLower(token)
}

// acquire blocks until the channel lease is held and returns its release
// function.
func (t *leaseTable) acquire(key string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	t.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
