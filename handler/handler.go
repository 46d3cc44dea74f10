package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/slack-go/slack"

	"slack-roaster/internal/domain"
	"slack-roaster/internal/usecase"
)

const unsupportedCommandText = "Unsupported command."

// Dispatcher hands a job to the worker path without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.Job) error
}

// Route binds a slash command to its immediate ack text and its worker.
type Route struct {
	Ack    string
	Runner usecase.Runner
}

type Routes map[string]Route

type Handler struct {
	signingSecret string
	dispatcher    Dispatcher
	routes        Routes
	logger        *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(signingSecret string, dispatcher Dispatcher, routes Routes, opts ...Option) (*Handler, error) {
	if strings.TrimSpace(signingSecret) == "" {
		return nil, errors.New("handler: signing secret must not be empty")
	}
	if dispatcher == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if len(routes) == 0 {
		return nil, errors.New("handler: at least one route is required")
	}
	for name, r := range routes {
		if r.Runner == nil {
			return nil, fmt.Errorf("handler: route %s has no runner", name)
		}
	}
	h := &Handler{
		signingSecret: signingSecret,
		dispatcher:    dispatcher,
		routes:        routes,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type payloadKind struct {
	Kind string `json:"kind"`
}

// Handle is the Lambda entry point. It serves both API Gateway requests from
// Slack and the asynchronous job events the function sends to itself.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	var kind payloadKind
	if err := json.Unmarshal(raw, &kind); err == nil && kind.Kind == domain.JobKind {
		var job domain.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			h.logger.Error("job payload decode failed", "err", err)
			return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
		}
		h.runLogged(ctx, job)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_event", correlationID(nil)), nil
	}
	return h.HandleRequest(ctx, req), nil
}

// HandleRequest acknowledges one slash command invocation and dispatches the
// work. It never waits for the generated content.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	headers := requestHeaders(req)
	corrID := correlationID(headers)
	log := h.logger.With("correlation_id", corrID)

	body, err := decodeBody(req)
	if err != nil {
		log.Warn("request body decode failed", "err", err)
		return errorResponse(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_body", corrID)
	}
	if isSSLCheck(headers, body) {
		return emptyResponse(http.StatusOK, corrID)
	}
	if err := h.verify(headers, body); err != nil {
		log.Warn("slack signature rejected", "err", err)
		return errorResponse(http.StatusUnauthorized, usecase.ErrorUnauthorized, "invalid_signature", corrID)
	}

	cmd, err := parseSlashCommand(headers, body)
	if err != nil {
		log.Warn("slash command parse failed", "err", err)
		return errorResponse(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid_command", corrID)
	}
	if cmd.UserID == "" {
		return errorResponse(http.StatusBadRequest, usecase.ErrorInvalidInput, "missing_user_id", corrID)
	}
	log = log.With("command", cmd.Name, "user_id", cmd.UserID, "channel_id", cmd.ChannelID)

	route, ok := h.routes[cmd.Name]
	if !ok {
		log.Info("unsupported command")
		return ackResponse(unsupportedCommandText, corrID)
	}

	if err := h.dispatcher.Dispatch(ctx, domain.NewJob(cmd, corrID)); err != nil {
		log.Error("job dispatch failed", "err", err)
		return errorResponse(http.StatusInternalServerError, usecase.ErrorInternal, "dispatch_error", corrID)
	}
	log.Info("command acknowledged")
	return ackResponse(route.Ack, corrID)
}

// RunJob executes the worker for the job's command.
func (h *Handler) RunJob(ctx context.Context, job domain.Job) error {
	route, ok := h.routes[job.Command.Name]
	if !ok {
		return usecase.NewError(usecase.ErrorInvalidInput, "unsupported_command", fmt.Errorf("command %q", job.Command.Name))
	}
	return route.Runner.Run(ctx, job.Command)
}

// runLogged runs the job and swallows its error so Lambda does not retry the
// event and post a second reply.
func (h *Handler) runLogged(ctx context.Context, job domain.Job) {
	log := h.logger.With(
		"correlation_id", job.CorrelationID,
		"command", job.Command.Name,
		"user_id", job.Command.UserID,
	)
	if err := h.RunJob(ctx, job); err != nil {
		code, reason := usecase.Describe(err)
		log.Error("job failed", "code", code, "reason", reason, "err", err)
		return
	}
	log.Info("job completed")
}

func (h *Handler) verify(headers http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(headers, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func toCommand(sc slack.SlashCommand) domain.Command {
	return domain.Command{
		Name:        sc.Command,
		UserID:      sc.UserID,
		UserName:    sc.UserName,
		ChannelID:   sc.ChannelID,
		TeamID:      sc.TeamID,
		Text:        sc.Text,
		ResponseURL: sc.ResponseURL,
	}
}
