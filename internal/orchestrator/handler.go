package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/registry"
)

// NewOrchestratorHandler returns the priced handler for the orchestrator's
// service route. The body must carry a non-empty task.
func NewOrchestratorHandler(agentID int64, router *Router, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Task string `json:"task"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Task) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'task' in request body"})
			return
		}

		result, err := router.Route(c.Request.Context(), body.Task)
		if err != nil {
			logger.Errorf("Orchestration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "Orchestration failed",
				"detail": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"agentId":   agentID,
			"service":   "orchestrate",
			"task":      result.Task,
			"routing":   result.SelectedCategories,
			"payload":   result.Payload,
			"results":   result.Results,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

// FeedPublisher pushes payment events to the facilitator's event feed.
type FeedPublisher struct {
	baseURL       string
	clientAddress string
	httpClient    *http.Client
	logger        *logrus.Logger
}

// NewFeedPublisher creates a publisher for the facilitator at baseURL.
// clientAddress is the paying wallet recorded on each event.
func NewFeedPublisher(baseURL, clientAddress string, logger *logrus.Logger) *FeedPublisher {
	return &FeedPublisher{
		baseURL:       strings.TrimRight(baseURL, "/"),
		clientAddress: clientAddress,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		logger:        logger,
	}
}

// PublishPayment records one confirmed payment to the given provider.
func (p *FeedPublisher) PublishPayment(ctx context.Context, provider *registry.ScoredProvider, amount string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":          "payment",
		"agentName":     provider.Name,
		"agentId":       provider.AgentID,
		"amount":        amount,
		"currency":      "USDC",
		"clientAddress": p.clientAddress,
		"status":        "confirmed",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/events", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("event push returned %d", resp.StatusCode)
	}
	return nil
}
