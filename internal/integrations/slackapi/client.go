package slackapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"slack-roaster/internal/domain"
)

// ProfileFields lists the Slack profile fields copied into the stored snapshot.
var ProfileFields = []string{
	"display_name",
	"status_text",
	"status_emoji",
	"title",
	"phone",
	"email",
	"image_original",
	"image_72",
}

// slackAPI is the minimal Web API surface required by Client.
// *slack.Client satisfies this interface.
type slackAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Client posts bot replies and reads user info on behalf of the workers.
type Client struct {
	api slackAPI
}

// New wraps an already configured slack-go client.
func New(api slackAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("slackapi: api must not be nil")
	}
	return &Client{api: api}, nil
}

// NewFromToken builds a slack-go client for the bot OAuth token.
func NewFromToken(token string, opts ...slack.Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("slackapi: oauth token must not be empty")
	}
	return New(slack.New(token, opts...))
}

func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("slackapi: channel is required")
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slackapi: post message to %s: %w", channelID, err)
	}
	return nil
}

// UploadImage uploads the image bytes to the channel with comment as the
// initial message.
func (c *Client) UploadImage(ctx context.Context, channelID, comment, filename string, data []byte) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("slackapi: channel is required")
	}
	if len(data) == 0 {
		return errors.New("slackapi: image is empty")
	}
	if filename == "" {
		filename = "image.png"
	}
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        channelID,
		Filename:       filename,
		Title:          filename,
		FileSize:       len(data),
		Reader:         bytes.NewReader(data),
		InitialComment: comment,
	})
	if err != nil {
		return fmt.Errorf("slackapi: upload %s to %s: %w", filename, channelID, err)
	}
	return nil
}

// UserInfo fetches the user and flattens the profile fields we keep.
func (c *Client) UserInfo(ctx context.Context, userID string) (domain.SlackUser, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.SlackUser{}, errors.New("slackapi: user id is required")
	}
	u, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return domain.SlackUser{}, fmt.Errorf("slackapi: users.info %s: %w", userID, err)
	}
	if u == nil {
		return domain.SlackUser{}, fmt.Errorf("slackapi: users.info %s: empty user", userID)
	}
	return toDomainUser(u), nil
}

func toDomainUser(u *slack.User) domain.SlackUser {
	p := u.Profile
	// Every field in ProfileFields is present, empty or not.
	profile := map[string]string{
		"display_name":   p.DisplayName,
		"status_text":    p.StatusText,
		"status_emoji":   p.StatusEmoji,
		"title":          p.Title,
		"phone":          p.Phone,
		"email":          p.Email,
		"image_original": p.ImageOriginal,
		"image_72":       p.Image72,
	}
	realName := u.RealName
	if realName == "" {
		realName = p.RealName
	}
	return domain.SlackUser{
		ID:       u.ID,
		Name:     u.Name,
		RealName: realName,
		Profile:  profile,
	}
}
