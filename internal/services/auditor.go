package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/llm"
)

const auditorSystemPrompt = `You are an expert smart contract security auditor. Analyze the provided Solidity code and produce a concise audit report covering:
1. Critical vulnerabilities (reentrancy, integer overflow, access control, etc.)
2. Medium-severity issues
3. Gas optimization suggestions
4. Overall security rating (A-F)

Be specific and cite line numbers where possible. Keep the report under 500 words.`

// NewAuditorHandler returns the code-audit service handler.
func NewAuditorHandler(agentID int64, completer llm.Completer, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'code' in request body"})
			return
		}

		prompt := fmt.Sprintf("Audit this Solidity code:\n\n```solidity\n%s\n```", body.Code)
		report, err := completer.ChatCompletion(c.Request.Context(), auditorSystemPrompt, prompt, 1024)
		if err != nil {
			logger.Errorf("Audit completion failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service execution failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"agentId":   agentID,
			"service":   "code-audit",
			"result":    report,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
