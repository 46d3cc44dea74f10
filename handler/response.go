package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"slack-roaster/internal/usecase"
)

type ackBody struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func ackResponse(text, corrID string) events.APIGatewayProxyResponse {
	return JSONResponse(http.StatusOK, ackBody{ResponseType: "ephemeral", Text: text}, corrID)
}

func errorResponse(status int, code usecase.ErrorCode, reason, corrID string) events.APIGatewayProxyResponse {
	return JSONResponse(status, errorBody{Error: string(code), Reason: reason}, corrID)
}

func emptyResponse(status int, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{correlationHeader: corrID},
	}
}

// JSONResponse builds a JSON proxy response carrying the correlation id.
func JSONResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

// BinaryResponse builds a proxy response whose body API Gateway decodes from
// base64 before returning it to the caller.
func BinaryResponse(status int, contentType string, data []byte, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    contentType,
			correlationHeader: corrID,
		},
		Body:            base64.StdEncoding.EncodeToString(data),
		IsBase64Encoded: true,
	}
}

// DecodeResponseBody returns the raw bytes a proxy response carries.
func DecodeResponseBody(resp events.APIGatewayProxyResponse) ([]byte, error) {
	if !resp.IsBase64Encoded {
		return []byte(resp.Body), nil
	}
	return base64.StdEncoding.DecodeString(resp.Body)
}
