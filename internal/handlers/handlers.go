// Package handlers exposes the HTTP ingest endpoint.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/config"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/metrics"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// EventProcessor persists one event; see extract.Processor.
type EventProcessor interface {
	Process(ctx context.Context, e *event.Event) (int, error)
}

// ReadinessChecker reports whether the target database is reachable.
type ReadinessChecker interface {
	Ready() bool
}

type Options struct {
	Auth               config.AuthConfig
	MaxJSONPayloadSize int64
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
	Recorder metrics.Recorder
}

type Handler struct {
	processor EventProcessor
	readiness ReadinessChecker
	maxBody   int64
	recorder  metrics.Recorder
}

func NewHandler(processor EventProcessor, readiness ReadinessChecker, opts Options) *Handler {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Handler{
		processor: processor,
		readiness: readiness,
		maxBody:   opts.MaxJSONPayloadSize,
		recorder:  recorder,
	}
}

// NewRouter wires the routes. Authentication applies to the ingest endpoint only.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), RequestID())

	ingest := []gin.HandlerFunc{}
	if opts.Auth.Username != "" || opts.Auth.Token != "" {
		ingest = append(ingest, Authenticate(opts.Auth))
	}
	ingest = append(ingest, h.Ingest)
	router.POST("/", ingest...)

	router.GET("/healthz", h.Healthz)
	router.GET("/readyz", h.Readyz)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// Ingest accepts a CloudEvent in binary or structured mode. It answers 202
// when a row was written and 204 when nothing matched.
func (h *Handler) Ingest(c *gin.Context) {
	id := requestID(c)

	if h.maxBody > 0 && c.Request.ContentLength > h.maxBody {
		RespondWithError(c, http.StatusRequestEntityTooLarge, models.ErrorCodePayloadTooLarge, "Payload too large", gin.H{"limit": h.maxBody})
		return
	}
	body := c.Request.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBody)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, models.ErrorCodePayloadTooLarge, "Payload too large", gin.H{"limit": h.maxBody})
			return
		}
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidEvent, "Failed to read request body", err.Error())
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	e, err := cehttp.NewEventFromHTTPRequest(c.Request)
	if err == nil {
		err = e.Validate()
	}
	if err != nil {
		log.Printf("[%s] Failed to decode CloudEvent: %v", id, err)
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidEvent, "Invalid CloudEvent", err.Error())
		return
	}

	h.recorder.EventReceived("http")
	rows, err := h.processor.Process(c.Request.Context(), e)
	if err != nil {
		log.Printf("[%s] Failed to process event %s: %v", id, e.ID(), err)
		RespondWithServiceError(c, err)
		return
	}

	if rows == 0 {
		RespondWithSuccess(c, http.StatusNoContent, nil)
		return
	}
	log.Printf("[%s] Stored event %s", id, e.ID())
	RespondWithSuccess(c, http.StatusAccepted, nil)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Readyz(c *gin.Context) {
	if h.readiness != nil && !h.readiness.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
