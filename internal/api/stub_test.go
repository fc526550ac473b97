package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/miradorstack/mirador-vizchat/internal/models"
	"github.com/miradorstack/mirador-vizchat/internal/services"
)

type stubService struct {
	lastReq    models.QueryRequest
	resp       *models.QueryResponse
	err        error
	history    models.ListHistoryResponse
	historyErr error
	lastList   models.ListHistoryRequest
	healthErr  error
}

func (s *stubService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	s.lastReq = req
	if req.Prompt == "" {
		msg := services.ErrInvalidPrompt.Error()
		return &models.QueryResponse{Success: false, Error: msg, Message: msg}, fmt.Errorf("validate: %w", services.ErrInvalidPrompt)
	}
	return s.resp, s.err
}

func (s *stubService) History(ctx context.Context, req models.ListHistoryRequest) (models.ListHistoryResponse, error) {
	s.lastList = req
	return s.history, s.historyErr
}

func (s *stubService) Health(ctx context.Context) error {
	return s.healthErr
}

func pieResponse() *models.QueryResponse {
	data, _ := json.Marshal(models.PieData{Type: "pie", Data: []models.PieSlice{{Label: "north", Value: 12}}})
	return &models.QueryResponse{
		Success:           true,
		VisualizationType: models.VisualizationPie,
		Data:              data,
		HumanReadable:     "**North** leads.",
		SQL:               "SELECT region, total FROM sales",
		QueryID:           "q-1",
	}
}
