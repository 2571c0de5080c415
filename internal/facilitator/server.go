package facilitator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/bus"
	"github.com/bitagent/bitagent-go/internal/facilitator/store"
)

// Server is the dashboard HTTP surface: provider snapshot, network stats,
// the event feed and its live websocket stream. Accepted events are
// published on the bus, which the websocket hub and the optional Postgres
// archive subscribe to.
type Server struct {
	aggregator *Aggregator
	feed       *Feed
	hub        *Hub
	eventBus   *bus.EventBus
	archive    *store.Postgres // nil when no DATABASE_URL is configured
	router     *gin.Engine
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer wires the dashboard server. archive may be nil.
func NewServer(aggregator *Aggregator, feed *Feed, eventBus *bus.EventBus, archive *store.Postgres, logger *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		aggregator: aggregator,
		feed:       feed,
		hub:        NewHub(eventBus, logger),
		eventBus:   eventBus,
		archive:    archive,
		router:     router,
		logger:     logger,
	}
	s.registerRoutes()

	if s.archive != nil {
		eventBus.SubscribeAll(s.archiveEvent)
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.getHealth)
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	api := s.router.Group("/api")
	api.GET("/agents", s.getAgents)
	api.GET("/stats", s.getStats)
	api.GET("/events", s.getEvents)
	api.POST("/events", s.postEvent)
}

// Start runs the hub and the HTTP listener. Blocks until the listener
// stops.
func (s *Server) Start(port int) error {
	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	s.logger.Infof("Facilitator dashboard listening on port %d", port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().Unix(),
		"events":      s.feed.Len(),
		"subscribers": s.hub.ClientCount(),
	})
}

// getAgents returns the enriched provider snapshot, best ranked first.
func (s *Server) getAgents(c *gin.Context) {
	views := s.aggregator.Snapshot(c.Request.Context())
	if views == nil {
		views = []AgentView{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": views})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.aggregator.Stats(c.Request.Context()))
}

// getEvents returns the buffered feed, newest first. With ?source=archive
// it reads from Postgres instead, which holds events past the ring
// buffer's capacity.
func (s *Server) getEvents(c *gin.Context) {
	if c.Query("source") == "archive" {
		if s.archive == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event archive not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		events, err := s.archive.RecentEvents(ctx, 0)
		if err != nil {
			s.logger.Warnf("Event archive read failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event archive read failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": s.feed.List()})
}

// feedEventRequest is the POST /api/events body. agentId is a pointer so a
// missing field is distinguishable from agent 0.
type feedEventRequest struct {
	Type          string `json:"type"`
	AgentName     string `json:"agentName"`
	AgentID       *int64 `json:"agentId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ClientAddress string `json:"clientAddress"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash"`
}

// postEvent validates and appends one feed event. The id and timestamp in
// the body, if any, are ignored; the feed assigns both.
func (s *Server) postEvent(c *gin.Context) {
	var req feedEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid event body: %v", err)})
		return
	}
	if req.AgentID == nil {
		verr := &ValidationError{Field: "agentId", Reason: "is required"}
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}

	accepted, err := s.feed.Append(FeedEvent{
		Type:          EventType(req.Type),
		AgentName:     req.AgentName,
		AgentID:       *req.AgentID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		ClientAddress: req.ClientAddress,
		Status:        EventStatus(req.Status),
		TxHash:        req.TxHash,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.eventBus.PublishAsync(bus.EventType(accepted.Type), map[string]interface{}{
		"id":            accepted.ID,
		"timestamp":     accepted.Timestamp,
		"type":          string(accepted.Type),
		"agentName":     accepted.AgentName,
		"agentId":       accepted.AgentID,
		"amount":        accepted.Amount,
		"currency":      accepted.Currency,
		"clientAddress": accepted.ClientAddress,
		"status":        string(accepted.Status),
		"txHash":        accepted.TxHash,
	})

	c.JSON(http.StatusCreated, accepted)
}

// archiveEvent writes an accepted event to Postgres. Archive failures are
// logged, never surfaced: the in-memory feed already accepted the event.
func (s *Server) archiveEvent(event bus.Event) {
	row := store.ArchivedEvent{Type: string(event.Type)}
	if v, ok := event.Payload["id"].(string); ok {
		row.ID = v
	}
	if v, ok := event.Payload["timestamp"].(int64); ok {
		row.Timestamp = v
	}
	if v, ok := event.Payload["agentName"].(string); ok {
		row.AgentName = v
	}
	if v, ok := event.Payload["agentId"].(int64); ok {
		row.AgentID = v
	}
	if v, ok := event.Payload["amount"].(string); ok {
		row.Amount = v
	}
	if v, ok := event.Payload["currency"].(string); ok {
		row.Currency = v
	}
	if v, ok := event.Payload["clientAddress"].(string); ok {
		row.ClientAddress = v
	}
	if v, ok := event.Payload["status"].(string); ok {
		row.Status = v
	}
	if v, ok := event.Payload["txHash"].(string); ok {
		row.TxHash = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.archive.InsertEvent(ctx, row); err != nil {
		s.logger.Warnf("Event archive write failed: %v", err)
	}
}
