package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/FynnleyNeko/DroolonStreamer/internal/api/models"
)

// registerLEDRoutes registers the LED status endpoint when an LED is driven.
func (s *Server) registerLEDRoutes() {
	if s.options.LED == nil {
		s.logger.Debug("LED control not enabled, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led",
		Method:      http.MethodGet,
		Path:        "/api/led",
		Summary:     "Status LED",
		Description: "Pattern currently shown on the status LED",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.LEDResponse, error) {
		return &models.LEDResponse{
			Body: models.LEDData{
				Available: s.options.LED.Available(),
				Pattern:   s.options.LED.Pattern(),
			},
		}, nil
	})
}
