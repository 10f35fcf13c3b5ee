package httpapi

import (
	"sync"
	"time"
)

// revocationList holds the ids of logged-out session tokens until they would have
// expired anyway. It is process-local; tokens stay short-lived through SessionTTL.
type revocationList struct {
	mutex   sync.Mutex
	revoked map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{revoked: map[string]time.Time{}}
}

func (list *revocationList) revoke(tokenID string, expiresAt time.Time, now time.Time) {
	if tokenID == "" {
		return
	}
	list.mutex.Lock()
	defer list.mutex.Unlock()
	list.prune(now)
	list.revoked[tokenID] = expiresAt
}

func (list *revocationList) isRevoked(tokenID string, now time.Time) bool {
	list.mutex.Lock()
	defer list.mutex.Unlock()
	expiresAt, ok := list.revoked[tokenID]
	if !ok {
		return false
	}
	if !now.Before(expiresAt) {
		delete(list.revoked, tokenID)
		return false
	}
	return true
}

func (list *revocationList) prune(now time.Time) {
	for tokenID, expiresAt := range list.revoked {
		if !now.Before(expiresAt) {
			delete(list.revoked, tokenID)
		}
	}
}
