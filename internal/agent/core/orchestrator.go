package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

// RunOptions tunes a single workflow run. Zero values fall back to the
// workflow section of the config.
type RunOptions struct {
	LimitSteps bool
	MaxSteps   int
}

// RunResult is the outcome of a workflow run. TokensUsed and Cost aggregate
// the spend of every agent step.
type RunResult struct {
	ID         string
	Topic      string
	History    History
	Report     string
	StartedAt  time.Time
	Duration   time.Duration
	TokensUsed int64
	Cost       float64
}

// Orchestrator drives the plan/route/execute loop and persists the final
// report. It owns the tool provider and must be closed when done.
type Orchestrator struct {
	cfg       *config.Config
	llm       LLMProvider
	planner   *Planner
	router    *Router
	agents    map[AgentKind]Agent
	docs      DocumentStore
	tools     ToolProvider
	telemetry *telemetry.Telemetry
	tracer    trace.Tracer
	logger    *log.Logger
}

func NewOrchestrator(cfg *config.Config, llm LLMProvider, docs DocumentStore, tools ToolProvider, tele *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		llm:       llm,
		planner:   NewPlanner(llm, cfg.Models.Planner, 1),
		router:    NewRouter(llm, cfg.Models.Router),
		agents:    NewAgents(cfg, llm, docs, tools, tele),
		docs:      docs,
		tools:     tools,
		telemetry: tele,
		tracer:    otel.Tracer("researcher/orchestrator"),
		logger:    log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

// Close releases the tool provider. Safe to call once from a defer so the
// transport goes down on every exit path.
func (o *Orchestrator) Close() error {
	if o.tools == nil {
		return nil
	}
	return o.tools.Close()
}

// Run executes the full research workflow for a topic: plan, route each step
// to an agent, accumulate history, and persist the final report.
//
// A planning or routing failure aborts the run. An unknown agent name from
// the router does not: the step is recorded with a sentinel output and the
// run continues. Report persistence failures are logged, not returned, since
// the research itself already succeeded.
func (o *Orchestrator) Run(ctx context.Context, topic string, opts RunOptions) (*RunResult, error) {
	runID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.topic", topic),
		))
	defer span.End()

	result := &RunResult{ID: runID, Topic: topic, StartedAt: start}

	history, err := o.run(ctx, topic, opts, result)
	result.History = history
	result.Duration = time.Since(start)

	agentsUsed := make([]string, 0, len(history))
	for _, rec := range history {
		agentsUsed = append(agentsUsed, rec.Agent)
	}
	if o.telemetry != nil {
		event := telemetry.WorkflowEvent{
			ID:         runID,
			Topic:      topic,
			StartTime:  start,
			EndTime:    time.Now(),
			Duration:   result.Duration,
			Success:    err == nil,
			StepsRun:   len(history),
			AgentsUsed: agentsUsed,
			Cost:       result.Cost,
			TokensUsed: result.TokensUsed,
		}
		if err != nil {
			event.Error = err.Error()
		}
		o.telemetry.RecordWorkflowEvent(ctx, event)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, topic string, opts RunOptions, result *RunResult) (History, error) {
	plan, err := o.planner.GeneratePlan(ctx, topic)
	if err != nil {
		return nil, err
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.cfg.Workflow.MaxSteps
	}
	if (opts.LimitSteps || o.cfg.Workflow.LimitSteps) && len(plan) > maxSteps {
		o.logger.Printf("limiting execution to %d steps (plan has %d steps)", maxSteps, len(plan))
		plan = plan[:maxSteps]
	}

	var history History
	for i, step := range plan {
		rec, usage, err := o.executeStep(ctx, topic, i, step, history)
		result.TokensUsed += usage.Total()
		result.Cost += o.llm.CalculateCost(usage.InputTokens, usage.OutputTokens, usage.Model)
		if err != nil {
			return history, err
		}
		history = append(history, rec)
	}

	if len(history) > 0 {
		report := helpers.StripCodeFences(history[len(history)-1].Output)
		result.Report = report
		if err := o.docs.SaveReport(ctx, topic, report); err != nil {
			o.logger.Printf("failed to save final report: %v", err)
		}
	}
	return history, nil
}

func (o *Orchestrator) executeStep(ctx context.Context, topic string, idx int, step string, history History) (ExecutionRecord, Usage, error) {
	ctx, span := o.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(
			attribute.Int("step.index", idx+1),
			attribute.String("step.text", step),
		))
	defer span.End()

	agentName, task, err := o.router.DecideAgent(ctx, step)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExecutionRecord{}, Usage{}, fmt.Errorf("routing step %d: %w", idx+1, err)
	}
	span.SetAttributes(attribute.String("step.agent", agentName))

	kind, known := ParseAgentKind(agentName)
	if !known {
		o.logger.Printf("unknown agent for step %d: %s", idx+1, agentName)
		return ExecutionRecord{
			Step:   step,
			Agent:  agentName,
			Output: fmt.Sprintf("⚠️ Unknown agent: %s", agentName),
		}, Usage{}, nil
	}

	agent := o.agents[kind]
	historyContext := history.Render()
	o.logger.Printf("executing step %d with agent %s: %s", idx+1, agentName, task)

	agentStart := time.Now()
	output, usage, err := agent.Execute(ctx, task, historyContext, topic)
	if o.telemetry != nil {
		event := telemetry.AgentEvent{
			ID:         uuid.NewString(),
			AgentType:  string(kind),
			StartTime:  agentStart,
			EndTime:    time.Now(),
			Duration:   time.Since(agentStart),
			Success:    err == nil,
			Cost:       o.llm.CalculateCost(usage.InputTokens, usage.OutputTokens, usage.Model),
			TokensUsed: usage.Total(),
			ModelUsed:  usage.Model,
		}
		if err != nil {
			event.Error = err.Error()
		}
		o.telemetry.RecordAgentEvent(ctx, event)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ExecutionRecord{}, usage, fmt.Errorf("step %d (%s): %w", idx+1, agentName, err)
	}

	return ExecutionRecord{Step: step, Agent: agentName, Output: output}, usage, nil
}
