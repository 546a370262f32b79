package api

import (
	"bytes"
	"crypto/subtle"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/keynotes/domain/entities"
	"github.com/satriahrh/keynotes/domain/repositories"
	"github.com/satriahrh/keynotes/internal/alignment"
	"github.com/satriahrh/keynotes/internal/auth"
	"github.com/satriahrh/keynotes/internal/export"
	"github.com/satriahrh/keynotes/internal/metrics"
	"github.com/satriahrh/keynotes/internal/saga"
	"github.com/satriahrh/keynotes/internal/transcript"
	"github.com/satriahrh/keynotes/internal/websocket"
	"github.com/satriahrh/keynotes/usecase"
)

// MessageNoAudio is shown when an upload carries no audio
const MessageNoAudio = "No audio detected. Please try again."

//go:embed web/index.html
var indexPage []byte

// Dependencies are the services the HTTP routes call
type Dependencies struct {
	Transcriptions *usecase.TranscriptionService
	Hub            *websocket.Hub
	Issuer         *auth.TokenIssuer
	Metrics        *metrics.Metrics
	AccessKey      string
	Logger         *zap.Logger
}

type handler struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handler{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "keynotes-server",
		})
	})

	e.GET("/", func(c echo.Context) error {
		return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, indexPage)
	})

	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/auth/token", h.issueToken)

	protected := v1.Group("", deps.Issuer.Middleware())
	protected.POST("/transcriptions", h.submitTranscription)
	protected.GET("/transcriptions", h.listTranscriptions)
	protected.GET("/transcriptions/:id", h.getTranscription)
	protected.GET("/transcriptions/:id/steps", h.getTranscriptionSteps)
	protected.GET("/transcriptions/:id/text", h.getTranscriptionText)
	protected.GET("/transcriptions/:id/export", h.exportTranscription)
	protected.POST("/align", h.align)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			return echo.ErrUnauthorized
		}
		h.Logger.Info("WebSocket connection authenticated",
			zap.String("clientID", claims.ClientID),
			zap.String("jobID", c.QueryParam("job_id")))
		return websocket.HandleWebSocket(h.Hub, c, claims.ClientID, c.QueryParam("job_id"), h.Logger)
	}, deps.Issuer.Middleware())
}

func (h *handler) issueToken(c echo.Context) error {
	var req TokenRequest

	if err := c.Bind(&req); err != nil {
		h.Logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.AccessKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Access key is required",
		})
	}

	if subtle.ConstantTimeCompare([]byte(req.AccessKey), []byte(h.AccessKey)) != 1 {
		h.Logger.Warn("Client authentication failed", zap.String("client_id", req.ClientID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = c.RealIP()
	}

	token, expiresAt, err := h.Issuer.GenerateClientToken(clientID)
	if err != nil {
		h.Logger.Error("Failed to generate client token", zap.String("client_id", clientID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.Logger.Info("Client authenticated successfully", zap.String("client_id", clientID))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  clientID,
	})
}

func (h *handler) submitTranscription(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return h.errorJSON(c, usecase.ErrNoAudio)
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Expected a multipart form with an audio file",
		})
	}

	task, err := entities.ParseTask(c.FormValue("task"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_task", Message: err.Error()})
	}

	groupBySpeaker := true
	if v := c.FormValue("group_by_speaker"); v != "" {
		groupBySpeaker, err = strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_group_by_speaker",
				Message: "group_by_speaker must be true or false",
			})
		}
	}

	src, err := file.Open()
	if err != nil {
		h.Logger.Error("Failed to open uploaded audio", zap.Error(err))
		return h.errorJSON(c, err)
	}
	defer src.Close()

	audio, err := io.ReadAll(src)
	if err != nil {
		h.Logger.Error("Failed to read uploaded audio", zap.Error(err))
		return h.errorJSON(c, err)
	}

	job, err := h.Transcriptions.Submit(c.Request().Context(), usecase.SubmitRequest{
		AudioName:      filepath.Base(file.Filename),
		Audio:          audio,
		Task:           task,
		GroupBySpeaker: groupBySpeaker,
		Language:       c.FormValue("language"),
	})
	if err != nil {
		return h.errorJSON(c, err)
	}

	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		finished, err := h.Transcriptions.Wait(c.Request().Context(), job.ID)
		if err != nil {
			return h.errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, finished)
	}

	return c.JSON(http.StatusAccepted, job)
}

func (h *handler) listTranscriptions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	jobs, err := h.Transcriptions.List(c.Request().Context(), limit)
	if err != nil {
		return h.errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

func (h *handler) getTranscription(c echo.Context) error {
	job, err := h.Transcriptions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *handler) getTranscriptionSteps(c echo.Context) error {
	status, err := h.Transcriptions.GetSagaStatus(c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *handler) getTranscriptionText(c echo.Context) error {
	text, err := h.Transcriptions.Text(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.String(http.StatusOK, text)
}

func (h *handler) exportTranscription(c echo.Context) error {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.Transcriptions.Export(c.Request().Context(), id, &buf); err != nil {
		return h.errorJSON(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", id+".xlsx"))
	return c.Blob(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func (h *handler) align(c echo.Context) error {
	var req AlignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	tracks := make([]entities.RawDiarizationTrack, len(req.Tracks))
	for i, t := range req.Tracks {
		tracks[i] = entities.RawDiarizationTrack{
			Interval:     entities.TimeInterval{Start: t.Start, End: t.End},
			TrackID:      t.TrackID,
			SpeakerLabel: t.Speaker,
		}
	}
	chunks := make([]entities.ASRChunk, len(req.Chunks))
	for i, ch := range req.Chunks {
		chunks[i] = entities.ASRChunk{Timestamp: ch.Timestamp, Text: ch.Text}
	}

	groupBySpeaker := true
	if req.GroupBySpeaker != nil {
		groupBySpeaker = *req.GroupBySpeaker
	}

	// Without tracks alignment alone decides: empty for no chunks, no speaker data otherwise
	segments := []entities.SpeakerSegment{}
	if len(tracks) > 0 {
		var err error
		segments, err = alignment.Coalesce(tracks)
		if err != nil {
			return h.errorJSON(c, err)
		}
	}

	result, err := alignment.AlignWithReport(segments, chunks, groupBySpeaker)
	if err != nil {
		return h.errorJSON(c, err)
	}
	if result.Dropped > 0 {
		h.Logger.Warn("Transcript chunks after the last speaker segment were dropped",
			zap.Int("dropped", result.Dropped))
	}

	return c.JSON(http.StatusOK, AlignResponse{
		Segments:      segments,
		Utterances:    result.Utterances,
		DroppedChunks: result.Dropped,
		Text:          transcript.Format(result.Utterances),
	})
}

// errorJSON maps service errors onto HTTP statuses
func (h *handler) errorJSON(c echo.Context, err error) error {
	var invalidInterval *entities.InvalidIntervalError

	switch {
	case errors.Is(err, usecase.ErrNoAudio):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no_audio", Message: MessageNoAudio})
	case errors.Is(err, usecase.ErrAudioTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "audio_too_large", Message: err.Error()})
	case errors.Is(err, repositories.ErrJobNotFound), errors.Is(err, saga.ErrSagaNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, usecase.ErrJobNotFinished):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "job_not_finished", Message: err.Error()})
	case errors.Is(err, entities.ErrEmptyInput),
		errors.Is(err, entities.ErrNoSpeakerData),
		errors.As(err, &invalidInterval):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_timeline", Message: err.Error()})
	}

	h.Logger.Error("Request failed",
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}
