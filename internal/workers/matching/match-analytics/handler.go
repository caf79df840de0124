// internal/workers/matching/match-analytics/handler.go
package matchanalytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-analytics"
)

var (
	ErrAnalyticsFailed = errors.New("ANALYTICS_FAILED")
)

type Handler struct {
	config *Config
	engine *matching.Engine
	logger logger.Logger
}

func NewHandler(config *Config, engine *matching.Engine, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "ANALYTICS_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute returns the global rollup, plus the company dashboard view when a
// companyId is given.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	report, err := h.engine.GetAnalytics(ctx)
	if err != nil {
		return nil, err
	}

	output := &Output{Report: report}

	if input.CompanyID != "" {
		suggestions, err := h.engine.GetDashboardSuggestions(ctx, input.CompanyID)
		if err != nil {
			return nil, err
		}
		output.Suggestions = suggestions

		history, err := h.engine.ListMatchHistory(ctx, input.CompanyID, input.Page, input.PerPage)
		if err != nil {
			return nil, err
		}
		output.History = history
	}

	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
