package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/janpivonka/pulsenow-trade-engine/internal/domain"
	"go.uber.org/zap"
)

// DefaultDedupWindow absorbs duplicate triggers from overlapping monitoring
// cycles racing the same close.
const DefaultDedupWindow = 500 * time.Millisecond

// HistoryLog is the append-only record of settled executions. Inserts are
// rejected silently on an id collision, or when an entry with the same
// displayId+type was logged within the dedup window.
type HistoryLog struct {
	mu         sync.Mutex
	entries    []*domain.TradeHistoryEntry
	byID       map[string]struct{}
	lastLogged map[string]time.Time // "displayId|type" -> last insert time
	window     time.Duration
	archive    domain.HistoryArchive // optional durable sink
	logger     *zap.Logger
}

func NewHistoryLog(window time.Duration, archive domain.HistoryArchive, logger *zap.Logger) *HistoryLog {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &HistoryLog{
		byID:       make(map[string]struct{}),
		lastLogged: make(map[string]time.Time),
		window:     window,
		archive:    archive,
		logger:     logger,
	}
}

// Append records one settled execution. Returns false when the entry was
// dropped as a duplicate.
func (h *HistoryLog) Append(ctx context.Context, entry *domain.TradeHistoryEntry) bool {
	h.mu.Lock()

	if _, exists := h.byID[entry.ID]; exists {
		h.mu.Unlock()
		h.logger.Debug("history: dropped duplicate id", zap.String("id", entry.ID))
		return false
	}

	key := fmt.Sprintf("%d|%s", entry.DisplayID, entry.Type)
	now := time.Now()
	if last, ok := h.lastLogged[key]; ok && now.Sub(last) < h.window {
		h.mu.Unlock()
		h.logger.Debug("history: dropped fuzzy duplicate",
			zap.Int64("display_id", entry.DisplayID), zap.String("type", entry.Type))
		return false
	}

	stored := *entry
	h.entries = append(h.entries, &stored)
	h.byID[entry.ID] = struct{}{}
	h.lastLogged[key] = now
	h.mu.Unlock()

	if h.archive != nil {
		if err := h.archive.SaveTrade(ctx, entry); err != nil {
			h.logger.Warn("history: archive write failed", zap.Error(err))
		}
	}
	return true
}

// Snapshot returns all entries newest first.
func (h *HistoryLog) Snapshot() []*domain.TradeHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*domain.TradeHistoryEntry, len(h.entries))
	for i, e := range h.entries {
		cp := *e
		out[len(h.entries)-1-i] = &cp
	}
	return out
}

func (h *HistoryLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
