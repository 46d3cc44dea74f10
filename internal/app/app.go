// Package app builds the object graph shared by the Lambda entry point and
// the local dev server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"slack-roaster/handler"
	"slack-roaster/internal/config"
	"slack-roaster/internal/integrations/bedrock"
	"slack-roaster/internal/integrations/dispatch"
	"slack-roaster/internal/integrations/openai"
	"slack-roaster/internal/integrations/paramstore"
	"slack-roaster/internal/integrations/slackapi"
	"slack-roaster/internal/ratelimit"
	"slack-roaster/internal/repository"
	"slack-roaster/internal/usecase"
)

const (
	roastAck = "Processing..."
	picAck   = "will return some pic..."
)

type App struct {
	Config  config.Config
	AWS     aws.Config
	Limiter *ratelimit.Limiter
	Roast   *usecase.RoastService
	Picture *usecase.PictureService
	logger  *slog.Logger
}

// New loads the AWS configuration, resolves secrets and constructs every
// client once.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}

	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create paramstore client: %w", err)
	}
	if err := cfg.ResolveSecrets(ctx, params); err != nil {
		return nil, err
	}

	dynamo := awsdynamodb.NewFromConfig(awsCfg)
	profiles, err := repository.New(dynamo, cfg.ProfileTable)
	if err != nil {
		return nil, fmt.Errorf("app: create profile store: %w", err)
	}
	counter, err := repository.NewCounterStore(dynamo, cfg.CounterTable)
	if err != nil {
		return nil, fmt.Errorf("app: create counter store: %w", err)
	}
	limiter, err := ratelimit.New(counter, cfg.DailyPicQuota, ratelimit.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: create limiter: %w", err)
	}

	models, err := bedrock.New(bedrockruntime.NewFromConfig(awsCfg),
		bedrock.WithTextModel(cfg.BedrockTextModelID),
		bedrock.WithImageModel(cfg.BedrockImageModelID),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create bedrock client: %w", err)
	}

	var text usecase.TextGenerator = models
	var moderator usecase.Moderator
	if cfg.TextBackend == config.BackendOpenAI || cfg.ModerateImagePrompts {
		oa, err := openai.NewClient(params, cfg.ParamPrefix, openai.WithModel(cfg.OpenAIModel))
		if err != nil {
			return nil, fmt.Errorf("app: create openai client: %w", err)
		}
		if cfg.TextBackend == config.BackendOpenAI {
			text = oa
		}
		if cfg.ModerateImagePrompts {
			moderator = oa
		}
	}

	slackClient, err := slackapi.NewFromToken(cfg.SlackOAuthToken)
	if err != nil {
		return nil, fmt.Errorf("app: create slack client: %w", err)
	}

	roast, err := usecase.NewRoastService(slackClient, profiles, text, slackClient, cfg.TicketLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("app: create roast service: %w", err)
	}
	picOpts := []usecase.PictureOption{usecase.WithPictureLogger(logger)}
	if moderator != nil {
		picOpts = append(picOpts, usecase.WithModerator(moderator))
	}
	picture, err := usecase.NewPictureService(limiter, models, slackClient, picOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create picture service: %w", err)
	}

	return &App{
		Config:  cfg,
		AWS:     awsCfg,
		Limiter: limiter,
		Roast:   roast,
		Picture: picture,
		logger:  logger,
	}, nil
}

func (a *App) Routes() handler.Routes {
	return handler.Routes{
		"/roast": {Ack: roastAck, Runner: a.Roast},
		"/pic":   {Ack: picAck, Runner: a.Picture},
	}
}

// LambdaHandler wires the handler to asynchronous self-invocation.
func (a *App) LambdaHandler() (*handler.Handler, error) {
	d, err := dispatch.NewLambda(awslambda.NewFromConfig(a.AWS), a.Config.WorkerFunctionName)
	if err != nil {
		return nil, fmt.Errorf("app: create lambda dispatcher: %w", err)
	}
	return handler.NewHandler(a.Config.SlackSigningSecret, d, a.Routes(), handler.WithLogger(a.logger))
}

// LocalHandler wires the handler to an in-process dispatcher. Call Wait on
// the returned dispatcher before exiting.
func (a *App) LocalHandler() (*handler.Handler, *dispatch.Local, error) {
	d := dispatch.NewLocal(dispatch.WithLogger(a.logger))
	h, err := handler.NewHandler(a.Config.SlackSigningSecret, d, a.Routes(), handler.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	d.Bind(h.RunJob)
	return h, d, nil
}
