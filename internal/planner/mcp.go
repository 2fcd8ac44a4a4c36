// Package planner exposes plan metrics as MCP tools.
package planner

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AngelCh415/mediaplan/internal/engine"
	"github.com/AngelCh415/mediaplan/internal/metrics"
	"github.com/AngelCh415/mediaplan/internal/models"
	"github.com/AngelCh415/mediaplan/internal/store"
)

type Handler struct {
	svc *metrics.Service
}

func NewHandler(svc *metrics.Service) *Handler {
	return &Handler{svc: svc}
}

type toolError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type ComputeInput struct {
	// Bundle is computed ad hoc; without it PlanID names a stored plan.
	Bundle *models.Bundle `json:"bundle,omitempty"`
	PlanID string         `json:"plan_id,omitempty"`
	// Benchmarks overrides only the rates it carries.
	Benchmarks *models.BenchmarkOverrides `json:"benchmarks,omitempty"`
	Display    bool                       `json:"display,omitempty"`
}

type ComputeOutput struct {
	Metrics *engine.PlanMetrics `json:"metrics,omitempty"`
	Display *engine.Display     `json:"display,omitempty"`
}

type ListInput struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type ListOutput struct {
	Plans []metrics.PlanSummary `json:"plans"`
}

func (h *Handler) errorResult(e toolError) (*sdk.CallToolResult, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: string(data)}},
	}, nil
}

// HandleComputePlanMetrics computes one plan, stored or supplied inline.
func (h *Handler) HandleComputePlanMetrics(ctx context.Context, _ *sdk.CallToolRequest, in ComputeInput) (*sdk.CallToolResult, ComputeOutput, error) {
	var q metrics.Query
	if in.Benchmarks != nil {
		q.Overrides = *in.Benchmarks
	}

	var (
		m   engine.PlanMetrics
		err error
	)
	switch {
	case in.Bundle != nil:
		m, err = h.svc.Compute(*in.Bundle, in.PlanID, q)
	case in.PlanID == "":
		res, buildErr := h.errorResult(toolError{Error: "plan_id or bundle is required", Code: "MISSING_REQUIRED_FIELD"})
		return res, ComputeOutput{}, buildErr
	default:
		m, err = h.svc.PlanMetrics(in.PlanID, q)
	}
	if err != nil {
		code := "INVALID_INPUT"
		if errors.Is(err, store.ErrNotFound) {
			code = "NOT_FOUND"
		}
		res, buildErr := h.errorResult(toolError{Error: err.Error(), Code: code})
		return res, ComputeOutput{}, buildErr
	}

	if in.Display {
		d := m.Display()
		return nil, ComputeOutput{Display: &d}, nil
	}
	return nil, ComputeOutput{Metrics: &m}, nil
}

// HandleListPlans lists stored plans with headline figures.
func (h *Handler) HandleListPlans(ctx context.Context, _ *sdk.CallToolRequest, in ListInput) (*sdk.CallToolResult, ListOutput, error) {
	q := metrics.Query{Statuses: metrics.StatusSet(in.Status), Limit: in.Limit, Offset: in.Offset}
	return nil, ListOutput{Plans: h.svc.Summaries(q)}, nil
}

func (h *Handler) RegisterTools(s *sdk.Server) {
	sdk.AddTool(s, &sdk.Tool{
		Name:        "mediaplan.compute_plan_metrics",
		Description: "Compute budget, fee and projected performance metrics for a media plan",
	}, h.HandleComputePlanMetrics)

	sdk.AddTool(s, &sdk.Tool{
		Name:        "mediaplan.list_plans",
		Description: "List stored media plans with headline figures",
	}, h.HandleListPlans)
}

// NewServer builds an MCP server with every tool registered.
func NewServer(svc *metrics.Service, version string) *sdk.Server {
	s := sdk.NewServer(&sdk.Implementation{Name: "mediaplan", Version: version}, nil)
	NewHandler(svc).RegisterTools(s)
	return s
}

// ServeStdio blocks until ctx ends or the client goes away.
func ServeStdio(ctx context.Context, s *sdk.Server) error {
	return s.Run(ctx, &sdk.StdioTransport{})
}
