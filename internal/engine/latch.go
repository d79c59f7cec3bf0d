package engine

import "sync/atomic"

// AuthLatch records that the analysis server rejected the configured
// credentials. Once tripped, remaining pipelines short-circuit instead of
// sending the same doomed token with every request.
type AuthLatch struct {
	tripped atomic.Bool
}

func (l *AuthLatch) Trip() {
	if l == nil {
		return
	}
	l.tripped.Store(true)
}

func (l *AuthLatch) Tripped() bool {
	return l != nil && l.tripped.Load()
}
