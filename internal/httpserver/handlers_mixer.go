package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Youpit44/camillamix/internal/broadcast"
	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
	"github.com/Youpit44/camillamix/internal/platform/config"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

const defaultImportName = "imported"

func (s *Server) registerMixerRoutes() {
	s.echo.GET("/api/state", s.handleGetState)
	s.echo.GET("/api/dsp", s.handleDSPStatus)
	s.echo.GET("/api/camilla_config", s.handleDSPConfig)
	s.echo.GET("/api/autosave", s.handleGetAutosave)
	s.echo.POST("/api/autosave", s.handleUpdateAutosave)
	s.echo.POST("/api/import", s.handleImport, s.writeLimit("import"))
}

func (s *Server) handleGetState(c echo.Context) error {
	snap, err := s.mixer.Snapshot(c.Request().Context())
	if err != nil {
		return apperrors.Internal("failed to read mixer state", err)
	}
	if err := c.JSON(http.StatusOK, snap); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDSPStatus(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.dsp.Status()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// dspConfigResponse describes where the adapter is pointed. The endpoint
// comes from the environment, so it is read-only here.
type dspConfigResponse struct {
	Backend string           `json:"backend"`
	WSURL   string           `json:"ws_url"`
	Host    string           `json:"host"`
	Port    int              `json:"port"`
	Status  domain.DSPStatus `json:"status"`
}

func dspEndpoint(cfg *config.Config) (wsURL, host string, port int) {
	switch cfg.DSPBackend {
	case config.BackendCamilla:
		u, err := url.Parse(cfg.CamillaWSURL)
		if err != nil {
			return cfg.CamillaWSURL, "", 0
		}
		port, _ = strconv.Atoi(u.Port())
		return cfg.CamillaWSURL, u.Hostname(), port
	case config.BackendOSC:
		return "", cfg.OSCHost, cfg.OSCPort
	default:
		return "", "", 0
	}
}

func (s *Server) handleDSPConfig(c echo.Context) error {
	wsURL, host, port := dspEndpoint(s.config)
	resp := dspConfigResponse{
		Backend: s.config.DSPBackend,
		WSURL:   wsURL,
		Host:    host,
		Port:    port,
		Status:  s.dsp.Status(),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetAutosave(c echo.Context) error {
	settings, err := s.mixer.AutosaveSettings(c.Request().Context())
	if err != nil {
		return apperrors.Internal("failed to read autosave settings", err)
	}
	if err := c.JSON(http.StatusOK, settings); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateAutosave(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 4096))
	if err != nil {
		return apperrors.InvalidInput("failed to read request body", err)
	}
	update, err := broadcast.DecodeAutosaveUpdate(body)
	if err != nil {
		return err
	}

	settings, err := s.mixer.UpdateAutosave(c.Request().Context(), update)
	if err != nil {
		return apperrors.Internal("failed to update autosave settings", err)
	}
	if err := c.JSON(http.StatusOK, settings); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleImport accepts the document as the raw body, as JSON {yaml, name}
// or as a multipart "file" field.
func (s *Server) handleImport(c echo.Context) error {
	raw, name, err := s.readImport(c)
	if err != nil {
		return err
	}
	if name == "" {
		name = c.QueryParam("name")
	}
	if name == "" {
		name = defaultImportName
	}
	if _, err := mixer.ValidatePresetName(name); err != nil {
		return apperrors.InvalidInput("invalid preset name", err).WithContext("name", name)
	}

	snap, prov, err := s.importer.Import(raw)
	switch {
	case errors.Is(err, domain.ErrDocumentTooLarge):
		return apperrors.InvalidInput("document too large", err).WithContext("max_bytes", s.importer.MaxBytes())
	case err != nil:
		return apperrors.InvalidInput("could not parse config document", err)
	}

	res, err := s.mixer.ApplyImport(c.Request().Context(), broadcast.ImportRequest{
		Snapshot:   snap,
		Provenance: prov,
		Name:       name,
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.Internal("failed to apply import", err)
	}
	if err := c.JSON(http.StatusOK, res); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) readImport(c echo.Context) ([]byte, string, error) {
	limit := int64(s.importer.MaxBytes())
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", apperrors.InvalidInput("multipart upload needs a file field", err)
		}
		if fh.Size > limit {
			return nil, "", apperrors.InvalidInput("document too large", domain.ErrDocumentTooLarge).WithContext("max_bytes", limit)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", apperrors.InvalidInput("failed to open uploaded file", err)
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return nil, "", apperrors.InvalidInput("failed to read uploaded file", err)
		}
		return raw, c.FormValue("name"), nil
	}

	// A JSON wrapper escapes the document, so allow it some headroom.
	readLimit := limit + 1
	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		readLimit = 2*limit + 1024
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, readLimit))
	if err != nil {
		return nil, "", apperrors.InvalidInput("failed to read request body", err)
	}

	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var wrapper struct {
			YAML *string `json:"yaml"`
			Name string  `json:"name"`
		}
		if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.YAML != nil {
			return []byte(*wrapper.YAML), wrapper.Name, nil
		}
	}
	return body, "", nil
}
