package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/console/view"
)

// InsightsProvider Описываем, что нам нужно от сервиса
type InsightsProvider interface {
	Snapshot() view.Model
	Refresh(ctx context.Context) error
}

type InsightsHandler struct {
	service InsightsProvider
	logger  *zap.Logger
}

func NewInsightsHandler(s InsightsProvider, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{service: s, logger: logger.Named("insights-handler")}
}

// GetInsights отдает полную модель: график, топики, состояние снапшота
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.service.Snapshot())
}

// GetChart отдает только блок графика (nil, если данных нет)
func (h *InsightsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	m := h.service.Snapshot()
	if m.Chart == nil {
		writeJSON(w, map[string]string{"message": view.MsgNoData})
		return
	}
	writeJSON(w, m.Chart)
}

// ForceRefresh синхронно обновляет снапшот вне расписания
func (h *InsightsHandler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		h.logger.Error("forced refresh failed", zap.Error(err))
		// Прошлый снапшот цел, поэтому это не фатально для клиента
		http.Error(w, "refresh failed, serving previous snapshot", http.StatusBadGateway)
		return
	}
	writeJSON(w, h.service.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
