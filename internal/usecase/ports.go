package usecase

import (
	"context"

	"slack-roaster/internal/domain"
	"slack-roaster/internal/ratelimit"
)

// Runner executes one slash command on the worker path.
type Runner interface {
	Run(ctx context.Context, cmd domain.Command) error
}

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Moderator screens free text before it reaches a generator.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type Messenger interface {
	PostMessage(ctx context.Context, channelID, text string) error
	UploadImage(ctx context.Context, channelID, comment, filename string, data []byte) error
}

type UserDirectory interface {
	UserInfo(ctx context.Context, userID string) (domain.SlackUser, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID, scope string) (domain.UserProfile, bool, error)
	PutProfile(ctx context.Context, profile domain.UserProfile) error
	ListTickets(ctx context.Context, userID string, limit int) ([]domain.Ticket, error)
}

// QuotaGate is satisfied by *ratelimit.Limiter.
type QuotaGate interface {
	TryConsume(ctx context.Context, subjectID string) (ratelimit.Decision, error)
	Quota() int
}
