// Package main provides the Lambda handler for the fodder analyzer.
// This is the entry point for AWS Lambda Function URL deployment.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/controller"
	"github.com/fodder-analyzer/internal/engine"
	"github.com/fodder-analyzer/internal/web"
)

// handler routes Function URL requests onto a controller that lives as
// long as the Lambda execution environment
type handler struct {
	ctrl *controller.Controller
}

// Handle processes Lambda Function URL requests
func (h *handler) Handle(ctx context.Context, request events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	path := strings.TrimSuffix(request.RawPath, "/")
	if path == "" {
		path = "/"
	}
	method := request.RequestContext.HTTP.Method

	// Log request (goes to CloudWatch)
	fmt.Printf("[%s] %s %s\n", time.Now().Format(time.RFC3339), method, path)

	// Handle OPTIONS (CORS preflight)
	if method == http.MethodOptions {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusOK,
			Headers:    corsHeaders("application/json"),
		}, nil
	}

	q := request.QueryStringParameters

	switch {
	case path == "/api/health" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, h.ctrl.Health(ctx))
	case path == "/api/data" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, h.ctrl.Data(ctx))
	case path == "/api/insights" && method == http.MethodGet:
		report, err := h.ctrl.Insights(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, map[string]interface{}{"success": true, "report": report})
	case path == "/api/regions" && method == http.MethodGet:
		regions, err := h.ctrl.RegionInsights(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, map[string]interface{}{"success": true, "regions": regions})
	case path == "/api/forecast" && method == http.MethodGet:
		return h.handleForecast(ctx, q)
	case path == "/api/scenario" && method == http.MethodGet:
		drop, _ := strconv.Atoi(q["drop"])
		resp, err := h.ctrl.Scenario(ctx, controller.ScenarioRequest{Region: q["region"], DropPct: drop})
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, resp)
	case path == "/api/chat" && method == http.MethodPost:
		return h.handleChat(ctx, request, false)
	case path == "/api/chat/stream" && method == http.MethodPost:
		return h.handleChat(ctx, request, true)
	case path == "/api/upload" && method == http.MethodPost:
		return h.handleUpload(ctx, request)
	case path == "/api/upload/latest" && method == http.MethodGet:
		latest, err := h.ctrl.LatestUpload(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, controller.UploadResponse{Success: true, Result: latest})
	case path == "/api/cache/refresh" && method == http.MethodPost:
		regions := h.ctrl.RefreshData()
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"success":     true,
			"regions":     regions,
			"message":     fmt.Sprintf("Dataset reloaded: %d regions", regions),
			"refreshTime": time.Now().Format(time.RFC3339),
		})
	case path == "/" && method == http.MethodGet:
		return jsonResponse(http.StatusOK, map[string]interface{}{
			"service": "fodder-analyzer",
			"version": controller.Version,
		})
	default:
		return jsonResponse(http.StatusNotFound, map[string]interface{}{
			"success": false,
			"error":   "Not found",
		})
	}
}

func (h *handler) handleForecast(ctx context.Context, q map[string]string) (events.LambdaFunctionURLResponse, error) {
	req := controller.ForecastRequest{Region: q["region"]}
	var err error
	if v := q["months"]; v != "" {
		if req.Months, err = strconv.Atoi(v); err != nil {
			return badRequest("months must be an integer")
		}
	}
	if v := q["jitter"]; v != "" {
		if req.Jitter, err = strconv.ParseFloat(v, 64); err != nil {
			return badRequest("jitter must be a number")
		}
	}
	if v := q["seed"]; v != "" {
		if req.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return badRequest("seed must be a non-negative integer")
		}
	}

	resp, err := h.ctrl.Forecast(ctx, req)
	if err != nil {
		return errorResponse(err)
	}
	return jsonResponse(http.StatusOK, resp)
}

// handleChat answers in the chat shape even on internal failure. Function
// URLs buffer the body, so the stream route returns the whole answer as
// plain text.
func (h *handler) handleChat(ctx context.Context, request events.LambdaFunctionURLRequest, plain bool) (resp events.LambdaFunctionURLResponse, err error) {
	body, err := requestBody(request)
	if err != nil {
		return badRequest("Invalid request body")
	}
	var req controller.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest("Invalid request body")
	}

	ctx, cancel := context.WithTimeout(ctx, 55*time.Second)
	defer cancel()

	defer func() {
		if v := recover(); v != nil {
			resp, err = jsonResponse(http.StatusOK, controller.ChatResponse{
				Response: fmt.Sprintf("%s: %v", engine.SystemErrorPrefix, v),
			})
		}
	}()

	answer, chatErr := h.ctrl.Chat(ctx, req)
	if chatErr != nil {
		return errorResponse(chatErr)
	}
	if plain {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusOK,
			Headers:    corsHeaders("text/plain; charset=utf-8"),
			Body:       answer.Response,
		}, nil
	}
	return jsonResponse(http.StatusOK, answer)
}

func (h *handler) handleUpload(ctx context.Context, request events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body, err := requestBody(request)
	if err != nil {
		return badRequest("Invalid request body")
	}

	contentType := request.Headers["content-type"]
	if contentType == "" {
		contentType = request.Headers["Content-Type"]
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return badRequest("Upload must be multipart/form-data")
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return badRequest("Missing form field \"file\"")
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		resp, err := h.ctrl.Upload(ctx, part.FileName(), part)
		part.Close()
		if err != nil {
			return errorResponse(err)
		}
		return jsonResponse(http.StatusOK, resp)
	}
}

func requestBody(request events.LambdaFunctionURLRequest) ([]byte, error) {
	if request.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(request.Body)
	}
	return []byte(request.Body), nil
}

func corsHeaders(contentType string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Content-Type":                 contentType,
	}
}

func badRequest(msg string) (events.LambdaFunctionURLResponse, error) {
	return jsonResponse(http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

func errorResponse(err error) (events.LambdaFunctionURLResponse, error) {
	status := web.StatusFor(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	return jsonResponse(status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

func jsonResponse(statusCode int, body interface{}) (events.LambdaFunctionURLResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error": "Failed to serialize response"}`,
		}, nil
	}

	return events.LambdaFunctionURLResponse{
		StatusCode: statusCode,
		Headers:    corsHeaders("application/json"),
		Body:       string(jsonBody),
	}, nil
}

func main() {
	// Loads Secrets Manager values when running in Lambda
	_ = config.Get()

	h := &handler{ctrl: controller.New()}
	lambda.Start(h.Handle)
}
