package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"slack-roaster/internal/domain"
)

const (
	defaultTicketLimit = 10
	defaultUserName    = "User"

	roastRefusedText = "Lo siento, no puedo generar una broma que pueda resultar ofensiva. ¿Qué tal si intentamos algo diferente? 😊"
	roastFailedText  = "No pude crear una broma esta vez. Por favor, inténtalo de nuevo más tarde."
)

// RoastService handles /roast: it gathers what is known about the caller,
// asks the text model for a roast and posts it to the channel.
type RoastService struct {
	users       UserDirectory
	store       ProfileStore
	text        TextGenerator
	messenger   Messenger
	ticketLimit int
	logger      *slog.Logger
}

func NewRoastService(users UserDirectory, store ProfileStore, text TextGenerator, messenger Messenger, ticketLimit int, logger *slog.Logger) (*RoastService, error) {
	if users == nil {
		return nil, errors.New("usecase: user directory must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: profile store must not be nil")
	}
	if text == nil {
		return nil, errors.New("usecase: text generator must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if ticketLimit <= 0 {
		ticketLimit = defaultTicketLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoastService{
		users:       users,
		store:       store,
		text:        text,
		messenger:   messenger,
		ticketLimit: ticketLimit,
		logger:      logger,
	}, nil
}

func (s *RoastService) Run(ctx context.Context, cmd domain.Command) error {
	if strings.TrimSpace(cmd.UserID) == "" {
		return newError(ErrorInvalidInput, "missing_user_id", nil)
	}
	log := s.logger.With("command", cmd.Name, "user_id", cmd.UserID, "channel_id", cmd.ChannelID)

	name := defaultUserName
	slackID := cmd.UserID
	var slackProfile map[string]string
	user, err := s.users.UserInfo(ctx, cmd.UserID)
	haveUser := err == nil
	if err != nil {
		log.Warn("user info lookup failed", "err", err)
	} else {
		if user.ID != "" {
			slackID = user.ID
		}
		if dn := user.DisplayName(); dn != "" {
			name = dn
		}
		slackProfile = user.Profile
	}

	scope := domain.ProfileScope(name)
	var storedAttributes map[string]string
	stored, found, err := s.store.GetProfile(ctx, cmd.UserID, scope)
	if err != nil {
		log.Warn("stored profile lookup failed", "err", err)
	} else if found {
		storedAttributes = stored.Attributes
	}

	tickets, err := s.store.ListTickets(ctx, slackID, s.ticketLimit)
	if err != nil {
		log.Warn("ticket lookup failed", "err", err)
		tickets = nil
	}

	// Without a fresh Slack profile there is nothing newer to write.
	if haveUser {
		if err := s.store.PutProfile(ctx, domain.UserProfile{
			UserID:     cmd.UserID,
			Scope:      scope,
			Attributes: slackProfile,
		}); err != nil {
			log.Warn("profile snapshot write failed", "err", err)
		}
	}

	attributes := storedAttributes
	if haveUser {
		attributes = slackProfile
	}

	outcome := s.generate(ctx, buildRoastPrompt(attributes, tickets))
	if outcome.Err != nil {
		log.Warn("roast generation failed", "outcome", outcome.Kind.String(), "err", outcome.Err)
	} else {
		log.Info("roast generated", "outcome", outcome.Kind.String(), "tickets", len(tickets))
	}

	if err := s.messenger.PostMessage(ctx, cmd.ChannelID, roastMessage(name, cmd.Mention(), outcome)); err != nil {
		return newError(ErrorUpstream, "slack_post_error", err)
	}
	return nil
}

func (s *RoastService) generate(ctx context.Context, prompt string) domain.Outcome {
	text, err := s.text.GenerateText(ctx, prompt)
	switch {
	case errors.Is(err, domain.ErrRefused):
		return domain.Refused("")
	case err != nil:
		return domain.Failed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Failed(errors.New("usecase: empty completion"))
	}
	if isRefusal(text) {
		return domain.Refused(text)
	}
	return domain.Success(text)
}

func roastMessage(name, mention string, outcome domain.Outcome) string {
	var body string
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		body = outcome.Text
	case domain.OutcomeRefused:
		body = roastRefusedText
	default:
		body = roastFailedText
	}
	return fmt.Sprintf("Hey %s %s, %s", name, mention, body)
}
