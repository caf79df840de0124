// internal/workers/matching/batch-match/handler.go
package batchmatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"freight-match-engine/internal/common/logger"
	"freight-match-engine/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TaskType = "batch-match"
)

// inputSchema rejects negative windows before the run starts; a batch with a
// bad window would otherwise scan nothing and report success.
const inputSchema = `{
	"type": "object",
	"properties": {
		"hoursBack": {"type": "integer", "minimum": 0},
		"limitPerFreight": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": true
}`

var (
	ErrBatchMatchFailed = errors.New("BATCH_MATCH_FAILED")

	schema = gojsonschema.NewStringLoader(inputSchema)
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

	if err := validateInput(job.Variables); err != nil {
		h.failJob(client, job, "PARSE_ERROR", err.Error())
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "BATCH_MATCH_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func validateInput(variables string) error {
	if strings.TrimSpace(variables) == "" {
		return nil
	}
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(variables))
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	hoursBack := input.HoursBack
	if hoursBack <= 0 {
		hoursBack = h.config.HoursBack
	}
	limit := input.LimitPerFreight
	if limit <= 0 {
		limit = h.config.LimitPerFreight
	}

	summary, err := h.engine.BatchMatch(ctx, hoursBack, limit)
	if err != nil {
		return nil, err
	}

	return &Output{
		Processed:      summary.Processed,
		ZeroMatch:      summary.ZeroMatch,
		MatchesWritten: summary.MatchesWritten,
		FailedOffers:   len(summary.Errors),
		Cancelled:      summary.Cancelled,
		DurationMs:     summary.Duration.Milliseconds(),
	}, nil
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

func (h *Handler) ValidateInput(variables string) error {
	return validateInput(variables)
}
