package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/service"
	"github.com/gin-gonic/gin"
)

type WebhookHandler interface {
	HandleWebhookEvent(ctx context.Context, ev *entity.WebhookEvent) (service.Outcome, int64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router  *gin.Engine
	server  *http.Server
	service WebhookHandler
	db      Pinger
	now     func() time.Time
}

func NewServer(addr string, svc WebhookHandler, db Pinger) *Server {
	srv := &Server{
		router:  gin.New(),
		service: svc,
		db:      db,
		now:     time.Now,
	}
	srv.router.Use(gin.Recovery(), requestLogger())
	srv.server = &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.routes()
	return srv
}

// Start запускает сервер. После Shutdown возвращает nil.
func (s *Server) Start() error {
	slog.Info("server starting", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Для того чтобы не писать логирование в каждом хэндлере логируем все тут
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request received",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// эта функция заполняет наш маршрутизатор нужными хендлерами
func (s *Server) routes() {
	s.router.GET("/", s.handleHomePage)
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/dev-webhook", s.handleWebhook(false))
	s.router.POST("/prod-webhook", s.handleWebhook(true))
}

func (s *Server) handleHomePage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "The API is working just load a valid URL"})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "database connection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebhook ingests one platform event. A success response is sent only
// after the order's transaction committed, so the platform may safely retry
// on anything else.
func (s *Server) handleWebhook(prod bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		occurredAt := s.now().UTC().Format("2006-01-02T15:04:05.000Z")

		var ev entity.WebhookEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":      "failed",
				"reason":      "invalid_payload",
				"notes":       err.Error(),
				"occurred_at": occurredAt,
			})
			return
		}
		if !prod {
			slog.Debug("webhook event", "event", ev.Event, "platform_order_id", ev.Body.Order.ID, "status", ev.Body.Order.Status)
		}

		outcome, orderID, err := s.service.HandleWebhookEvent(c.Request.Context(), &ev)
		if err != nil {
			s.writeError(c, ev.Body.Order.ID, occurredAt, err)
			return
		}

		if outcome == service.OutcomeSkipped {
			c.JSON(http.StatusOK, gin.H{"message": "Order " + ev.Body.Order.Status + " successfully"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":     "Order received successfully",
			"order_id":    orderID,
			"status":      "succeeded",
			"occurred_at": occurredAt,
		})
	}
}

func (s *Server) writeError(c *gin.Context, orderID, occurredAt string, err error) {
	var malformed *entity.MalformedPayloadError
	switch {
	case errors.Is(err, entity.ErrPosItemIDNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "failed",
			"reason":      entity.ErrPosItemIDNotFound.Error(),
			"notes":       "id not found",
			"occurred_at": occurredAt,
		})
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "failed",
			"reason":      "invalid_payload",
			"notes":       malformed.Error(),
			"occurred_at": occurredAt,
		})
	default:
		// StorageError, UnknownPartnerError, timeouts: платформа должна повторить доставку
		slog.Error("failed to ingest webhook order", "platform_order_id", orderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":      "failed",
			"reason":      "internal_error",
			"occurred_at": occurredAt,
		})
	}
}
