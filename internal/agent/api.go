package agent

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitagent/bitagent-go/internal/registry"
)

// registerRoutes wires the unprotected liveness and metadata routes and the
// payment-gated service route.
func (a *Agent) registerRoutes() {
	a.router.GET("/health", a.getHealth)
	a.router.GET("/info", a.getInfo)
	a.router.POST(a.config.Agent.ServiceRoute, a.gate.Handler(a.handler))
}

// getHealth returns liveness plus the running payment counters.
func (a *Agent) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"agent": gin.H{
			"agentId":      a.config.Agent.AgentID,
			"name":         a.config.Agent.Name,
			"address":      a.wallet.Address(),
			"port":         a.config.Agent.Port,
			"stakeAmount":  a.config.Agent.StakeAmount,
			"pricePerCall": a.config.Agent.PriceMinorUnits,
			"earnings":     a.gate.EarningsMinor(),
			"requestCount": a.gate.RequestCount(),
		},
	})
}

// getInfo returns the provider descriptor consumed by discovery.
func (a *Agent) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, registry.ProviderDescriptor{
		AgentID:         a.config.Agent.AgentID,
		Name:            a.config.Agent.Name,
		Description:     a.config.Agent.Description,
		Wallet:          a.wallet.Address(),
		ServiceRoute:    a.config.Agent.ServiceRoute,
		PriceMinorUnits: a.config.Agent.PriceMinorUnits,
		Network:         a.config.Chain.Network,
		StakeAmount:     a.config.Agent.StakeAmount,
	})
}
