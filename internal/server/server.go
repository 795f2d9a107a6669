// Package server exposes the conversational turn endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/engine"
	"github.com/clarivue/claimpilot/internal/model"
)

// MaxUploadBytes caps the size of one uploaded document.
const MaxUploadBytes = 10 << 20

// allowedExtensions lists the upload types the extraction collaborator
// accepts.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// Advancer processes one conversational turn.
type Advancer interface {
	Advance(ctx context.Context, input engine.TurnInput) (*engine.TurnResult, error)
}

// Server wires the turn engine to an echo HTTP surface.
type Server struct {
	engine Advancer
	logger *slog.Logger
	echo   *echo.Echo
}

// turnResponse is the JSON body of a turn reply.
type turnResponse struct {
	Claim       *model.ClaimResult `json:"claim,omitempty"`
	PriceLookup *model.PriceLookup `json:"price_lookup,omitempty"`
	SessionID   string             `json:"session_id"`
	Status      model.Status       `json:"status"`
	Reply       string             `json:"reply"`
	InputType   engine.InputType   `json:"input_type"`
	Options     []engine.Option    `json:"options,omitempty"`
}

// New creates the HTTP server around a turn engine.
func New(eng Advancer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("12M"))

	s := &Server{engine: eng, logger: logger, echo: e}

	e.HTTPErrorHandler = s.errorHandler
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/api/chat", s.handleChat)

	return s
}

// Start begins serving on addr and blocks until shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server starting", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets tests drive the server without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleChat(c echo.Context) error {
	input := engine.TurnInput{
		SessionID: c.FormValue("session_id"),
		UserInput: c.FormValue("user_input"),
	}

	doc, err := readUpload(c)
	if err != nil {
		return err
	}
	input.Document = doc

	result, err := s.engine.Advance(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, common.ErrSessionBusy) {
			return echo.NewHTTPError(http.StatusTooManyRequests,
				"another turn for this session is in flight, please retry")
		}
		return fmt.Errorf("turn failed: %w", err)
	}

	return c.JSON(http.StatusOK, turnResponse{
		SessionID:   result.SessionID,
		Status:      result.Status,
		Reply:       result.Reply,
		InputType:   result.InputType,
		Options:     result.Options,
		Claim:       result.Claim,
		PriceLookup: result.PriceLookup,
	})
}

// readUpload pulls the optional document out of the multipart form,
// enforcing the size cap and extension allow-list.
func readUpload(c echo.Context) (*model.Document, error) {
	header, err := c.FormFile("file")
	if err != nil {
		// No file on this turn.
		return nil, nil
	}

	if header.Size > MaxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", MaxUploadBytes>>20))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return nil, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q", ext))
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", MaxUploadBytes>>20))
	}

	return &model.Document{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// errorHandler renders every error as structured JSON and logs it.
func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if httpErr.Message != nil {
			msg = fmt.Sprint(httpErr.Message)
		}
	}

	req := c.Request()
	s.logger.Error("request failed",
		"status", code,
		"method", req.Method,
		"path", req.URL.Path,
		"error", err)

	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
