// State and control endpoints.
//
// This file exposes the dashboard read model and the manual controls:
//   - GET  /api/v1/state        (leaderboard + music + last-error snapshot)
//   - POST /api/v1/rules/reload (re-read the rules document)
//   - POST /api/v1/music/skip   (advance the track queue)
//   - POST /api/v1/music/clear  (drop all queued tracks)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetState handles GET /api/v1/state.
func (h *Handlers) GetState(c *gin.Context) {
	ok(c, http.StatusOK, h.pipeline.StateSnapshot())
}

// ReloadRules handles POST /api/v1/rules/reload. It re-reads the rules
// document from disk and reports how much of it is active.
func (h *Handlers) ReloadRules(c *gin.Context) {
	cfg := h.pipeline.ReloadRules()
	ok(c, http.StatusOK, gin.H{
		"ok":        true,
		"rules":     len(cfg.Rules),
		"cooldowns": len(cfg.Cooldowns),
	})
}

// SkipTrack handles POST /api/v1/music/skip.
func (h *Handlers) SkipTrack(c *gin.Context) {
	h.music.Skip()
	ok(c, http.StatusOK, gin.H{"ok": true})
}

// ClearQueue handles POST /api/v1/music/clear.
func (h *Handlers) ClearQueue(c *gin.Context) {
	h.music.ClearQueue()
	ok(c, http.StatusOK, gin.H{"ok": true})
}
