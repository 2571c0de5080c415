package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/llm"
)

const analystSystemPrompt = `You are a data analyst specializing in blockchain and DeFi data. Analyze the provided data (CSV, JSON, or text) and produce insights including:
1. Key patterns and trends
2. Statistical summary
3. Anomalies or notable observations
4. Actionable recommendations

Keep the analysis concise and structured.`

// NewAnalystHandler returns the data-analysis service handler.
func NewAnalystHandler(agentID int64, completer llm.Completer, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Data     interface{} `json:"data"`
			Question string      `json:"question"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Data == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'data' in request body"})
			return
		}

		// Datasets arrive as strings, arrays or objects; render non-strings
		// back to JSON for the prompt.
		data, ok := body.Data.(string)
		if !ok {
			encoded, err := json.Marshal(body.Data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'data' in request body"})
				return
			}
			data = string(encoded)
		}
		if data == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'data' in request body"})
			return
		}

		prompt := fmt.Sprintf("Analyze this data and provide insights:\n\n%s", data)
		if body.Question != "" {
			prompt = fmt.Sprintf("Analyze this data and answer: %s\n\nData:\n%s", body.Question, data)
		}

		analysis, err := completer.ChatCompletion(c.Request.Context(), analystSystemPrompt, prompt, 2048)
		if err != nil {
			logger.Errorf("Analysis completion failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service execution failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"agentId":   agentID,
			"service":   "data-analysis",
			"result":    analysis,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
