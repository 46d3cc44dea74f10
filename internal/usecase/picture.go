package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"slack-roaster/internal/domain"
	"slack-roaster/internal/ratelimit"
)

const (
	picLimitReachedFmt = "You have reached your daily limit of %d pictures. Please try again tomorrow."
	picLimitUnknown    = "I couldn't check your daily picture limit right now. Please try again later."
	picMissingPrompt   = "Please provide a description for the image you'd like to generate."
	picRefused         = "Sorry, I can't generate that image. Please try a different description."
	picFailed          = "Sorry, I couldn't generate the image. Please try again later."
	picSuccessFmt      = "Here's the image I generated for you! Enjoy! %s"
)

// PictureService handles /pic: one image per admitted request, bounded per
// user per UTC day.
type PictureService struct {
	gate      QuotaGate
	images    ImageGenerator
	messenger Messenger
	moderator Moderator
	logger    *slog.Logger
}

type PictureOption func(*PictureService)

// WithModerator screens prompts before image generation. A flagged prompt is
// answered as a refusal; a moderation error is logged and ignored.
func WithModerator(m Moderator) PictureOption {
	return func(s *PictureService) {
		s.moderator = m
	}
}

func WithPictureLogger(logger *slog.Logger) PictureOption {
	return func(s *PictureService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPictureService(gate QuotaGate, images ImageGenerator, messenger Messenger, opts ...PictureOption) (*PictureService, error) {
	if gate == nil {
		return nil, errors.New("usecase: quota gate must not be nil")
	}
	if images == nil {
		return nil, errors.New("usecase: image generator must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	s := &PictureService{
		gate:      gate,
		images:    images,
		messenger: messenger,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *PictureService) Run(ctx context.Context, cmd domain.Command) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	log := s.logger.With("command", cmd.Name, "user_id", cmd.UserID, "channel_id", cmd.ChannelID)

	decision, err := s.gate.TryConsume(ctx, cmd.UserID)
	switch {
	case decision.Allowed():
	case decision == ratelimit.Denied:
		log.Info("daily picture limit reached", "quota", s.gate.Quota())
		return s.post(ctx, cmd.ChannelID, fmt.Sprintf(picLimitReachedFmt, s.gate.Quota()))
	default:
		log.Warn("daily picture limit unavailable", "err", err)
		return s.post(ctx, cmd.ChannelID, picLimitUnknown)
	}

	prompt := cmd.TrimmedText()
	if prompt == "" {
		return s.post(ctx, cmd.ChannelID, picMissingPrompt)
	}

	outcome := s.generate(ctx, log, prompt)
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		filename := "image-" + newUUID() + ".png"
		err := s.messenger.UploadImage(ctx, cmd.ChannelID, fmt.Sprintf(picSuccessFmt, cmd.Mention()), filename, outcome.Image)
		if err == nil {
			log.Info("image delivered", "filename", filename, "bytes", len(outcome.Image))
			return nil
		}
		log.Warn("image upload failed", "err", err)
		return s.post(ctx, cmd.ChannelID, picFailed)
	case domain.OutcomeRefused:
		log.Info("image refused")
		return s.post(ctx, cmd.ChannelID, picRefused)
	default:
		log.Warn("image generation failed", "err", outcome.Err)
		return s.post(ctx, cmd.ChannelID, picFailed)
	}
}

func (s *PictureService) generate(ctx context.Context, log *slog.Logger, prompt string) domain.Outcome {
	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, prompt)
		switch {
		case err != nil:
			log.Warn("prompt moderation failed", "err", err)
		case flagged:
			return domain.Refused("")
		}
	}

	img, err := s.images.GenerateImage(ctx, prompt)
	switch {
	case errors.Is(err, domain.ErrRefused):
		return domain.Refused("")
	case err != nil:
		return domain.Failed(err)
	case len(img) == 0:
		return domain.Failed(errors.New("usecase: empty image"))
	}
	return domain.ImageSuccess(img)
}

func (s *PictureService) post(ctx context.Context, channelID, text string) error {
	if err := s.messenger.PostMessage(ctx, channelID, text); err != nil {
		return newError(ErrorUpstream, "slack_post_error", err)
	}
	return nil
}

var newUUID = func() string {
	return uuid.NewString()
}
