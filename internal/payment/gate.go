package payment

import (
	"math/big"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GateConfig describes the priced resource a gate protects.
type GateConfig struct {
	Network           string
	Amount            string // price per call, minor units as decimal string
	Asset             string
	PayTo             string
	ResourceURL       string
	Description       string
	MaxTimeoutSeconds int
}

// Gate enforces the pay-per-call protocol on a priced route: no proof of
// payment yields a 402 challenge, a verified proof meters the call and runs
// the handler. It owns the process-local request and earnings counters.
type Gate struct {
	config   GateConfig
	verifier Verifier
	settler  Settler // optional; settlement outcome is logged, not surfaced
	logger   *logrus.Logger

	requestCount  atomic.Int64
	earningsMinor atomic.Int64
}

// NewGate creates a payment gate. The settler may be nil when settlement is
// handled out of band.
func NewGate(cfg GateConfig, verifier Verifier, settler Settler, logger *logrus.Logger) *Gate {
	if cfg.MaxTimeoutSeconds == 0 {
		cfg.MaxTimeoutSeconds = 300
	}
	return &Gate{config: cfg, verifier: verifier, settler: settler, logger: logger}
}

// RequestCount returns the number of verified paid requests served so far.
func (g *Gate) RequestCount() int64 {
	return g.requestCount.Load()
}

// EarningsMinor returns accrued earnings in minor units.
func (g *Gate) EarningsMinor() int64 {
	return g.earningsMinor.Load()
}

// Requirement returns the single payment requirement quoted in challenges.
func (g *Gate) Requirement() Requirement {
	return Requirement{
		Scheme:            SchemeExact,
		Network:           g.config.Network,
		Amount:            g.config.Amount,
		Asset:             g.config.Asset,
		PayTo:             g.config.PayTo,
		MaxTimeoutSeconds: g.config.MaxTimeoutSeconds,
	}
}

// Challenge builds the 402 body for an unpaid request.
func (g *Gate) Challenge() Challenge {
	return Challenge{
		X402Version: ProtocolVersion,
		Error:       "Payment required",
		Accepts:     []Requirement{g.Requirement()},
		Resource: Resource{
			URL:         g.config.ResourceURL,
			Description: g.config.Description,
		},
	}
}

// Handler wraps a service handler with the payment state machine. The
// wrapped handler only runs after a proof has been verified; its panics are
// converted into a generic 500 with the payment already consumed.
func (g *Gate) Handler(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(ProofHeader)
		if header == "" {
			header = c.GetHeader(LegacyProofHeader)
		}
		if header == "" {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, g.Challenge())
			return
		}

		proof, err := DecodeProofHeader(header)
		if err != nil {
			g.logger.Warnf("Rejecting unparseable payment proof: %v", err)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, g.Challenge())
			return
		}

		requirement := g.Requirement()
		result, err := g.verifier.Verify(c.Request.Context(), proof, requirement)
		if err != nil {
			g.logger.Warnf("Payment verification unavailable: %v", err)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, g.Challenge())
			return
		}
		if !result.IsValid {
			g.logger.Warnf("Payment proof rejected: %s", result.InvalidReason)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, g.Challenge())
			return
		}

		// Meter before execution: the payment is consumed even if the
		// handler fails. No refund path.
		count := g.requestCount.Add(1)
		if price, ok := new(big.Int).SetString(g.config.Amount, 10); ok {
			g.earningsMinor.Add(price.Int64())
		}
		g.logger.Infof("Request #%d - payment verified (payer %s)", count, result.Payer)

		if g.settler != nil {
			if _, err := g.settler.Settle(c.Request.Context(), proof, requirement); err != nil {
				g.logger.Warnf("Settlement deferred to facilitator: %v", err)
			}
		}

		defer func() {
			if r := recover(); r != nil {
				g.logger.Errorf("Service handler panicked: %v", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Service execution failed"})
			}
		}()
		handler(c)
	}
}
