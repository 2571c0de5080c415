package utils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureLoggerLevelAndFormat(t *testing.T) {
	logger := ConfigureLogger(LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = ConfigureLogger(LogConfig{Level: "warn", Format: "text"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestConfigureLoggerFallsBackToInfo(t *testing.T) {
	logger := ConfigureLogger(LogConfig{Level: "shouting"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
