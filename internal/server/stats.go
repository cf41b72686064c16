package server

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

func (s *Server) handleServerStats(ctx context.Context) (any, error) {
	s.statsMu.Lock()
	calls := make(map[string]int, len(s.toolCalls))
	totalCalls := 0
	for tool, n := range s.toolCalls {
		calls[tool] = n
		totalCalls += n
	}
	toolErrors := s.toolErrors
	s.statsMu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	result := map[string]any{
		"success": true,
		"server": map[string]any{
			"name":       serverName,
			"version":    serverVersion,
			"started_at": s.startedAt.UTC().Format(time.RFC3339),
			"uptime":     uptime.String(),
		},
		"sessions": map[string]any{
			"active": s.store.Len(),
		},
		"tools": map[string]any{
			"total_calls": totalCalls,
			"errors":      toolErrors,
			"calls":       calls,
		},
	}

	if s.history != nil {
		totals, err := s.history.Totals(ctx)
		if err != nil {
			s.log.Warn("failed to read generation totals", zap.Error(err))
		} else {
			byModel, err := s.history.TotalsByModel(ctx)
			if err != nil {
				s.log.Warn("failed to read per-model totals", zap.Error(err))
			}
			result["generations"] = map[string]any{
				"images":         totals.Images,
				"total_bytes":    totals.TotalBytes,
				"total_size":     humanize.Bytes(uint64(totals.TotalBytes)),
				"total_cost_usd": fmt.Sprintf("%.4f", totals.TotalCost),
				"by_model":       byModel,
			}
		}
	}

	return result, nil
}
