package domain

// ProfileScopePrefix prefixes the sort key of a stored user profile snapshot.
const ProfileScopePrefix = "#USER#"

// TicketPrefix prefixes the sort key of every activity (ticket) record.
const TicketPrefix = "#TICKET#"

// ProfileScope returns the sort key of the profile snapshot for a display name.
func ProfileScope(displayName string) string {
	return ProfileScopePrefix + displayName
}

// SlackUser is what the chat surface tells us about the invoking user.
type SlackUser struct {
	ID       string
	Name     string
	RealName string
	Profile  map[string]string
}

// DisplayName prefers the real name over the handle.
func (u SlackUser) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// UserProfile is the persisted profile snapshot of a user, overwritten on
// every roast.
type UserProfile struct {
	UserID     string            `dynamodbav:"user_id"`
	Scope      string            `dynamodbav:"sk"`
	Attributes map[string]string `dynamodbav:"attributes"`
	UpdatedAt  string            `dynamodbav:"updated_at"`
}

// Ticket is a read-only activity record used as roast material.
type Ticket struct {
	UserID   string `dynamodbav:"user_id"`
	SK       string `dynamodbav:"sk"`
	Comments string `dynamodbav:"comments"`
}

// ID strips the ticket prefix from the sort key.
func (t Ticket) ID() string {
	if len(t.SK) >= len(TicketPrefix) && t.SK[:len(TicketPrefix)] == TicketPrefix {
		return t.SK[len(TicketPrefix):]
	}
	return t.SK
}
