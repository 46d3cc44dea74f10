package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"slack-roaster/internal/domain"
)

const correlationHeader = "X-Correlation-Id"

// requestHeaders canonicalises the API Gateway header maps.
func requestHeaders(req events.APIGatewayProxyRequest) http.Header {
	h := make(http.Header, len(req.Headers)+len(req.MultiValueHeaders))
	for k, vs := range req.MultiValueHeaders {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		h.Set(k, v)
	}
	return h
}

func correlationID(h http.Header) string {
	if v := strings.TrimSpace(h.Get(correlationHeader)); v != "" {
		return v
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}

func decodeBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return b, nil
}

func isJSON(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// Slack periodically probes the endpoint with ssl_check=1 and no command.
func isSSLCheck(h http.Header, body []byte) bool {
	if isJSON(h) {
		return false
	}
	vals, err := url.ParseQuery(string(body))
	return err == nil && vals.Get("ssl_check") == "1" && vals.Get("command") == ""
}

func parseSlashCommand(h http.Header, body []byte) (domain.Command, error) {
	if isJSON(h) {
		// slack.SlashCommand rejects JSON without is_enterprise_install.
		var cmd domain.Command
		if err := json.Unmarshal(body, &cmd); err != nil {
			return domain.Command{}, fmt.Errorf("decode json command: %w", err)
		}
		return normalizeCommand(cmd), nil
	}

	r, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return domain.Command{}, err
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sc, err := slack.SlashCommandParse(r)
	if err != nil {
		return domain.Command{}, fmt.Errorf("decode form command: %w", err)
	}
	return normalizeCommand(toCommand(sc)), nil
}

func normalizeCommand(cmd domain.Command) domain.Command {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	return cmd
}
