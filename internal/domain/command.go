package domain

import "strings"

// JobKind marks a Lambda payload as an asynchronous slash command job rather
// than an API Gateway request.
const JobKind = "slash_command_job"

// Command is the subset of a Slack slash command invocation the workers need.
type Command struct {
	Name        string `json:"command"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	ChannelID   string `json:"channel_id"`
	TeamID      string `json:"team_id,omitempty"`
	Text        string `json:"text,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

// Mention renders the Slack mention markup for the invoking user.
func (c Command) Mention() string {
	return "<@" + c.UserID + ">"
}

// TrimmedText returns the free-text argument without surrounding whitespace.
func (c Command) TrimmedText() string {
	return strings.TrimSpace(c.Text)
}

// Job is the payload handed from the intake path to the worker path.
type Job struct {
	Kind          string  `json:"kind"`
	CorrelationID string  `json:"correlationId,omitempty"`
	Command       Command `json:"command"`
}

// NewJob wraps a command into a worker job.
func NewJob(cmd Command, correlationID string) Job {
	return Job{Kind: JobKind, CorrelationID: correlationID, Command: cmd}
}
