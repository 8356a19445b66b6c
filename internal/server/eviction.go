package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
)

// EvictIdleEditors discards editors idle for longer than maxIdle and ends their event streams.
func EvictIdleEditors(editors *design.Registry, realtime *RealtimeDispatcher, maxIdle time.Duration) int {
	evicted := editors.EvictIdle(maxIdle)
	for _, editor := range evicted {
		realtime.Close(editor.ID, editor.Version)
	}
	return len(evicted)
}
