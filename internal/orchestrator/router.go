package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/llm"
	"github.com/bitagent/bitagent-go/internal/registry"
)

// Category is a routable provider kind.
type Category string

const (
	CategoryAudit     Category = "audit"
	CategoryTranslate Category = "translate"
	CategoryAnalyze   Category = "analyze"

	// DefaultCategory is used when the planner selects nothing usable.
	DefaultCategory = CategoryAnalyze
)

// categoryRoutes maps each category to the service route its providers
// publish in their descriptors.
var categoryRoutes = map[Category]string{
	CategoryAudit:     "/api/audit",
	CategoryTranslate: "/api/translate",
	CategoryAnalyze:   "/api/analyze",
}

const routerSystemPrompt = `You route tasks to specialized AI agents. Output JSON with keys: agents (array of 'audit'|'translate'|'analyze'), payload (object to send to each). Only include agents relevant to the task.`

// RoutingDecision is the planner's parsed output: an ordered set of
// categories plus a shared free-form payload.
type RoutingDecision struct {
	Agents  []Category             `json:"agents"`
	Payload map[string]interface{} `json:"payload"`
}

// CategoryResult is one category's outcome. A failed category carries its
// error in-band; it never aborts the other categories.
type CategoryResult struct {
	Category Category    `json:"agent"`
	Endpoint string      `json:"endpoint,omitempty"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// RouteResult is the combined outcome of one orchestrated task.
type RouteResult struct {
	Task               string                 `json:"task"`
	SelectedCategories []Category             `json:"routing"`
	Payload            map[string]interface{} `json:"payload"`
	Results            []CategoryResult       `json:"results"`
}

// ProviderResolver finds the best provider serving a route. Satisfied by
// registry.Discovery.
type ProviderResolver interface {
	FindByRoute(ctx context.Context, endpoints []string, route string) (*registry.ScoredProvider, error)
}

// PaidCaller performs a pay-and-retry POST against a priced endpoint.
// Satisfied by payment.Client.
type PaidCaller interface {
	CallPaidService(ctx context.Context, url string, body interface{}) ([]byte, error)
}

// EventPublisher records a completed payment on the facilitator feed.
// Publishing is best-effort; a failed push never fails the call.
type EventPublisher interface {
	PublishPayment(ctx context.Context, provider *registry.ScoredProvider, amount string) error
}

// Router classifies a free-text task into provider categories with an LLM
// planner, then performs one paid call per selected category.
type Router struct {
	completer llm.Completer
	resolver  ProviderResolver
	caller    PaidCaller
	events    EventPublisher // may be nil
	endpoints []string
	logger    *logrus.Logger
}

// NewRouter wires the routing pipeline. events may be nil when no
// facilitator feed is configured.
func NewRouter(completer llm.Completer, resolver ProviderResolver, caller PaidCaller, events EventPublisher, endpoints []string, logger *logrus.Logger) *Router {
	return &Router{
		completer: completer,
		resolver:  resolver,
		caller:    caller,
		events:    events,
		endpoints: endpoints,
		logger:    logger,
	}
}

// Route plans the task, resolves a provider per selected category and calls
// each through the paying client. Per-category failures are reported in the
// result; only a failed planner call fails the whole route.
func (r *Router) Route(ctx context.Context, task string) (*RouteResult, error) {
	plannerOutput, err := r.completer.ChatCompletion(ctx, routerSystemPrompt,
		fmt.Sprintf("Task:\n%s\n\nReturn strictly valid JSON.", task), 400)
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	decision := ParseRoutingDecision(plannerOutput)
	selected := decision.Agents
	if len(selected) == 0 {
		r.logger.Debugf("Planner selected no known categories, falling back to %s", DefaultCategory)
		selected = []Category{DefaultCategory}
	}

	results := make([]CategoryResult, 0, len(selected))
	for _, category := range selected {
		results = append(results, r.callCategory(ctx, category, decision.Payload, task))
	}

	return &RouteResult{
		Task:               task,
		SelectedCategories: selected,
		Payload:            decision.Payload,
		Results:            results,
	}, nil
}

func (r *Router) callCategory(ctx context.Context, category Category, shared map[string]interface{}, task string) CategoryResult {
	provider, err := r.resolver.FindByRoute(ctx, r.endpoints, categoryRoutes[category])
	if err != nil {
		return CategoryResult{Category: category, Error: err.Error()}
	}

	endpoint := provider.Endpoint + provider.ServiceRoute
	body := shapePayload(category, shared, task)

	respBody, err := r.caller.CallPaidService(ctx, endpoint, body)
	if err != nil {
		r.logger.Warnf("Category %s call failed: %v", category, err)
		return CategoryResult{Category: category, Endpoint: endpoint, Error: err.Error()}
	}

	var response interface{}
	if err := json.Unmarshal(respBody, &response); err != nil {
		response = string(respBody)
	}

	if r.events != nil {
		if err := r.events.PublishPayment(ctx, provider, FormatUSDC(provider.PriceMinorUnits)); err != nil {
			r.logger.Warnf("Payment event push failed for %s: %v", provider.Name, err)
		}
	}

	return CategoryResult{Category: category, Endpoint: endpoint, Response: response}
}

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)```")

// extractJSONObject pulls the planner's JSON out of its completion text:
// a fenced block when present, otherwise the span from the first '{' to
// the last '}'.
func extractJSONObject(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		return text[first : last+1]
	}
	return strings.TrimSpace(text)
}

// ParseRoutingDecision parses planner output defensively: unknown category
// tags are dropped, duplicates removed, and completely unparseable output
// yields an empty decision rather than an error.
func ParseRoutingDecision(raw string) RoutingDecision {
	var parsed struct {
		Agents  []interface{}          `json:"agents"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return RoutingDecision{Payload: map[string]interface{}{}}
	}

	seen := make(map[Category]bool)
	agents := make([]Category, 0, len(parsed.Agents))
	for _, item := range parsed.Agents {
		tag, ok := item.(string)
		if !ok {
			continue
		}
		category := Category(strings.ToLower(strings.TrimSpace(tag)))
		if _, known := categoryRoutes[category]; !known || seen[category] {
			continue
		}
		seen[category] = true
		agents = append(agents, category)
	}

	payload := parsed.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return RoutingDecision{Agents: agents, Payload: payload}
}

// shapePayload turns the planner's shared payload into the body each
// category's provider expects. Missing fields get synthetic fallbacks
// derived from the task text.
func shapePayload(category Category, shared map[string]interface{}, task string) map[string]interface{} {
	switch category {
	case CategoryAudit:
		code, ok := shared["code"].(string)
		if !ok {
			code = fmt.Sprintf("// task: %s\npragma solidity ^0.8.24;\ncontract Sample { function ping() external pure returns (uint256) { return 1; } }", task)
		}
		return map[string]interface{}{"code": code}

	case CategoryTranslate:
		from, ok := shared["from"].(string)
		if !ok {
			from = "en"
		}
		to, ok := shared["to"].(string)
		if !ok {
			to = "zh"
		}
		text, ok := shared["text"].(string)
		if !ok {
			text = task
		}
		return map[string]interface{}{
			"text":      text,
			"from":      from,
			"to":        to,
			"direction": fmt.Sprintf("%s-%s", from, to),
		}

	default:
		data, ok := shared["data"].([]interface{})
		if !ok {
			data = []interface{}{map[string]interface{}{"task": task, "calls": 1}}
		}
		question, ok := shared["question"].(string)
		if !ok {
			question = task
		}
		return map[string]interface{}{"data": data, "question": question}
	}
}

// FormatUSDC renders a minor-unit amount (6 decimals) as a display string.
func FormatUSDC(minorUnits string) string {
	minor, ok := new(big.Int).SetString(minorUnits, 10)
	if !ok {
		return minorUnits + " USDC"
	}
	whole := new(big.Int).Quo(minor, big.NewInt(1_000_000))
	frac := new(big.Int).Mod(minor, big.NewInt(1_000_000))
	if frac.Sign() == 0 {
		return whole.String() + " USDC"
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%06d", frac.Int64()), "0")
	return fmt.Sprintf("%s.%s USDC", whole.String(), fracStr)
}
