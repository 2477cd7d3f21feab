package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Lambda adapts API Gateway HTTP events onto the journal mux so the same
// routes serve both the standalone server and the Lambda deployment.
type Lambda struct {
	mux *http.ServeMux
}

func NewLambda(h *Handler) *Lambda {
	return &Lambda{mux: h.Routes()}
}

// Handle translates one API Gateway v2 event into an http.Request, serves
// it, and converts the captured response back.
func (l *Lambda) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"invalid body encoding"}`}, nil
		}
		body = string(decoded)
	}

	url := event.RawPath
	if event.RawQueryString != "" {
		url += "?" + event.RawQueryString
	}
	req, err := http.NewRequestWithContext(ctx, event.RequestContext.HTTP.Method, url, bytes.NewReader([]byte(body)))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"malformed request"}`}, nil
	}
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}

	capture := newResponseCapture()
	l.mux.ServeHTTP(capture, req)

	headers := make(map[string]string, len(capture.header))
	for k, vals := range capture.header {
		headers[k] = strings.Join(vals, ",")
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: capture.status,
		Headers:    headers,
		Body:       capture.body.String(),
	}, nil
}

// responseCapture is the minimal http.ResponseWriter the adapter needs.
type responseCapture struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseCapture() *responseCapture {
	return &responseCapture{header: make(http.Header), status: http.StatusOK}
}

func (c *responseCapture) Header() http.Header { return c.header }

func (c *responseCapture) WriteHeader(status int) { c.status = status }

func (c *responseCapture) Write(p []byte) (int, error) { return c.body.Write(p) }
