package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

const maxPresetBodyBytes = 1 << 20

func (s *Server) registerPresetRoutes() {
	s.echo.GET("/api/presets", s.handleListPresets)
	s.echo.POST("/api/presets", s.handleSavePreset, s.writeLimit("presets"))
	s.echo.GET("/api/presets/:name", s.handleGetPreset)
	s.echo.DELETE("/api/presets/:name", s.handleDeletePreset)
}

func (s *Server) handleListPresets(c echo.Context) error {
	if err := c.JSON(http.StatusOK, map[string][]string{"presets": s.presets.List()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type presetResponse struct {
	Name  string               `json:"name"`
	State domain.MixerSnapshot `json:"state"`
}

func (s *Server) handleGetPreset(c echo.Context) error {
	name, err := mixer.ValidatePresetName(c.Param("name"))
	if err != nil {
		return apperrors.InvalidInput("invalid preset name", err)
	}

	snap, ok, err := s.presets.Load(name)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("preset not found").WithContext("name", name)
	}
	if err := c.JSON(http.StatusOK, presetResponse{Name: name, State: snap}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleSavePreset saves the given state, or the live state when the
// body has none.
func (s *Server) handleSavePreset(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPresetBodyBytes))
	if err != nil {
		return apperrors.InvalidInput("failed to read request body", err)
	}

	var req struct {
		Name  string                `json:"name"`
		State *domain.MixerSnapshot `json:"state"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.InvalidInput("invalid json", err)
	}
	name, err := mixer.ValidatePresetName(req.Name)
	if err != nil {
		return apperrors.InvalidInput("invalid preset name", err)
	}

	saved, err := s.mixer.SavePreset(c.Request().Context(), name, req.State)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.Internal("failed to save preset", err)
	}
	if err := c.JSON(http.StatusOK, saved); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeletePreset(c echo.Context) error {
	name := c.Param("name")
	if err := s.presets.Delete(name); err != nil {
		return err
	}
	if err := c.JSON(http.StatusOK, map[string]string{"status": "deleted", "name": name}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
