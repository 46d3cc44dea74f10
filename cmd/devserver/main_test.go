package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"slack-roaster/handler"
)

type recordingHandler struct {
	req  events.APIGatewayProxyRequest
	resp events.APIGatewayProxyResponse
}

func (r *recordingHandler) HandleRequest(_ context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	r.req = req
	return r.resp
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&recordingHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSlackCommands_ForwardsRequest(t *testing.T) {
	rec := &recordingHandler{resp: handler.JSONResponse(http.StatusOK, map[string]string{"text": "Processing..."}, "corr-1")}
	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader("command=%2Froast&user_id=U1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Signature", "v0=abc")

	w := httptest.NewRecorder()
	newRouter(rec).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "corr-1", w.Header().Get("X-Correlation-Id"))
	require.JSONEq(t, `{"text":"Processing..."}`, w.Body.String())

	require.Equal(t, http.MethodPost, rec.req.HTTPMethod)
	require.Equal(t, "/slack/commands", rec.req.Path)
	require.Equal(t, "command=%2Froast&user_id=U1", rec.req.Body)
	require.Equal(t, "v0=abc", rec.req.Headers["X-Slack-Signature"])
}

func TestSlackCommands_BinaryResponse(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	rec := &recordingHandler{resp: handler.BinaryResponse(http.StatusOK, "image/png", png, "corr-2")}

	w := httptest.NewRecorder()
	newRouter(rec).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader("")))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, png, w.Body.Bytes())
}
