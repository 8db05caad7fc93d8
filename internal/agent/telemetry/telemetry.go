package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researcher/config"
)

// Telemetry provides monitoring and cost tracking for workflow runs
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds various performance metrics
type Metrics struct {
	// Workflow metrics
	TotalWorkflows      int64
	SuccessfulWorkflows int64
	FailedWorkflows     int64
	AverageWorkflowTime time.Duration

	// Agent metrics
	AgentExecutions   map[string]int64
	AgentSuccessRates map[string]float64
	AgentAverageTimes map[string]time.Duration

	// LLM metrics
	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64

	// Tool metrics
	ToolRequests     map[string]int64
	ToolSuccessRates map[string]float64
	ToolAverageTimes map[string]time.Duration
}

// CostTracker tracks costs across models and operations
type CostTracker struct {
	ModelCosts  map[string]float64 // model -> cost
	TotalCost   float64
	TotalTokens int64
}

// WorkflowEvent represents one complete workflow run
type WorkflowEvent struct {
	ID           string
	Topic        string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Success      bool
	Error        string
	Cost         float64
	TokensUsed   int64
	StepsPlanned int
	StepsRun     int
	AgentsUsed   []string
}

// AgentEvent represents a single agent execution
type AgentEvent struct {
	ID         string
	AgentType  string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Success    bool
	Error      string
	Cost       float64
	TokensUsed int64
	ModelUsed  string
}

// ToolEvent represents a tool invocation
type ToolEvent struct {
	ID        string
	Tool      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
	Results   int
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			AgentExecutions:   make(map[string]int64),
			AgentSuccessRates: make(map[string]float64),
			AgentAverageTimes: make(map[string]time.Duration),
			LLMRequests:       make(map[string]int64),
			LLMTokensUsed:     make(map[string]int64),
			ToolRequests:      make(map[string]int64),
			ToolSuccessRates:  make(map[string]float64),
			ToolAverageTimes:  make(map[string]time.Duration),
		},
		costTracker: &CostTracker{
			ModelCosts: make(map[string]float64),
		},
	}

	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsReporting()
	}

	return t
}

// RecordWorkflowEvent records a complete workflow run
func (t *Telemetry) RecordWorkflowEvent(ctx context.Context, event WorkflowEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalWorkflows++
	if event.Success {
		t.metrics.SuccessfulWorkflows++
	} else {
		t.metrics.FailedWorkflows++
	}

	if t.metrics.TotalWorkflows == 1 {
		t.metrics.AverageWorkflowTime = event.Duration
	} else {
		total := t.metrics.AverageWorkflowTime * time.Duration(t.metrics.TotalWorkflows-1)
		t.metrics.AverageWorkflowTime = (total + event.Duration) / time.Duration(t.metrics.TotalWorkflows)
	}

	for _, agent := range event.AgentsUsed {
		t.metrics.AgentExecutions[agent]++
	}

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.TokensUsed

	t.logger.Printf("Workflow Event: ID=%s, Topic=%q, Success=%t, Steps=%d/%d, Duration=%v, Cost=$%.4f, Tokens=%d",
		event.ID, event.Topic, event.Success, event.StepsRun, event.StepsPlanned, event.Duration, event.Cost, event.TokensUsed)
}

// RecordAgentEvent records an agent execution event
func (t *Telemetry) RecordAgentEvent(ctx context.Context, event AgentEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.AgentExecutions[event.AgentType]++

	currentSuccess := t.metrics.AgentSuccessRates[event.AgentType]
	currentExecutions := t.metrics.AgentExecutions[event.AgentType]
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.AgentSuccessRates[event.AgentType] = currentSuccess / float64(currentExecutions)

	currentAvg := t.metrics.AgentAverageTimes[event.AgentType]
	if currentExecutions == 1 {
		t.metrics.AgentAverageTimes[event.AgentType] = event.Duration
	} else {
		total := currentAvg * time.Duration(currentExecutions-1)
		t.metrics.AgentAverageTimes[event.AgentType] = (total + event.Duration) / time.Duration(currentExecutions)
	}

	// Per-model accounting happens here; run totals come in with the
	// workflow event so the same tokens are not counted twice.
	if event.ModelUsed != "" {
		t.metrics.LLMRequests[event.ModelUsed]++
		t.metrics.LLMTokensUsed[event.ModelUsed] += event.TokensUsed
		t.costTracker.ModelCosts[event.ModelUsed] += event.Cost
	}

	t.logger.Printf("Agent Event: Type=%s, Success=%t, Duration=%v, Cost=$%.4f",
		event.AgentType, event.Success, event.Duration, event.Cost)
}

// RecordToolEvent records a tool invocation event
func (t *Telemetry) RecordToolEvent(ctx context.Context, event ToolEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.ToolRequests[event.Tool]++

	currentSuccess := t.metrics.ToolSuccessRates[event.Tool]
	currentRequests := t.metrics.ToolRequests[event.Tool]
	if event.Success {
		currentSuccess += 1.0
	}
	t.metrics.ToolSuccessRates[event.Tool] = currentSuccess / float64(currentRequests)

	currentAvg := t.metrics.ToolAverageTimes[event.Tool]
	if currentRequests == 1 {
		t.metrics.ToolAverageTimes[event.Tool] = event.Duration
	} else {
		total := currentAvg * time.Duration(currentRequests-1)
		t.metrics.ToolAverageTimes[event.Tool] = (total + event.Duration) / time.Duration(currentRequests)
	}

	t.logger.Printf("Tool Event: Tool=%s, Success=%t, Duration=%v, Results=%d",
		event.Tool, event.Success, event.Duration, event.Results)
}

// GetMetrics returns a snapshot of current metrics
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.AgentExecutions = copyMap(t.metrics.AgentExecutions)
	metrics.AgentSuccessRates = copyMap(t.metrics.AgentSuccessRates)
	metrics.AgentAverageTimes = copyMap(t.metrics.AgentAverageTimes)
	metrics.LLMRequests = copyMap(t.metrics.LLMRequests)
	metrics.LLMTokensUsed = copyMap(t.metrics.LLMTokensUsed)
	metrics.ToolRequests = copyMap(t.metrics.ToolRequests)
	metrics.ToolSuccessRates = copyMap(t.metrics.ToolSuccessRates)
	metrics.ToolAverageTimes = copyMap(t.metrics.ToolAverageTimes)
	return metrics
}

// GetCosts returns a snapshot of cost tracking
func (t *Telemetry) GetCosts() CostTracker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	costs := *t.costTracker
	costs.ModelCosts = copyMap(t.costTracker.ModelCosts)
	return costs
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (t *Telemetry) startMetricsReporting() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m := t.GetMetrics()
		c := t.GetCosts()
		t.logger.Printf("Metrics: workflows=%d (success=%d, failed=%d), avg=%v, cost=$%.4f, tokens=%d",
			m.TotalWorkflows, m.SuccessfulWorkflows, m.FailedWorkflows, m.AverageWorkflowTime,
			c.TotalCost, c.TotalTokens)
	}
}

// Shutdown logs final numbers before exit
func (t *Telemetry) Shutdown() {
	if !t.config.Enabled {
		return
	}
	m := t.GetMetrics()
	c := t.GetCosts()
	t.logger.Printf("Final: workflows=%d (success=%d, failed=%d), total cost=$%.4f, total tokens=%d",
		m.TotalWorkflows, m.SuccessfulWorkflows, m.FailedWorkflows, c.TotalCost, c.TotalTokens)
}
