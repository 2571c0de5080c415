package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/llm"
)

const translatorSystemPrompt = `You are a professional translator specializing in Chinese-English translation for blockchain and AI technology. Translate the provided text accurately, preserving technical terms and formatting. Output only the translation, no explanations.`

// NewTranslatorHandler returns the translation service handler.
func NewTranslatorHandler(agentID int64, completer llm.Completer, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Text      string `json:"text"`
			Direction string `json:"direction"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'text' in request body"})
			return
		}

		dir := "Chinese to English"
		if body.Direction == "en-zh" {
			dir = "English to Chinese"
		}

		prompt := fmt.Sprintf("Translate the following text from %s:\n\n%s", dir, body.Text)
		translation, err := completer.ChatCompletion(c.Request.Context(), translatorSystemPrompt, prompt, 2048)
		if err != nil {
			logger.Errorf("Translation completion failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service execution failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"agentId":   agentID,
			"service":   "translation",
			"direction": dir,
			"result":    translation,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
