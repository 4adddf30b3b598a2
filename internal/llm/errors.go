package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "bureaucracy-oracle/internal/common/errors"
)

// ErrorKind classifies completion failures for retry and reporting.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimit
	KindOverloaded
	KindAuth
	KindNotFound
	KindBadRequest
	KindMalformed
	KindTimeout
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindOverloaded:
		return "overloaded"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindMalformed:
		return "malformed_response"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// ClassifiedError is returned by backends for every transport failure.
type ClassifiedError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	// Canceled is set when the caller's context ended the call, so the
	// failure says nothing about the model's health.
	Canceled bool
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt may succeed.
func (e *ClassifiedError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindOverloaded, KindTimeout, KindConnection:
		return true
	}
	return false
}

// KindOf extracts the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// AsStandardError maps a completion failure onto the worker error codes.
// Failures that are not transport errors are reported through stage.
func AsStandardError(err error, stage func(error) *apperrors.StandardError) *apperrors.StandardError {
	if errors.Is(err, ErrNoJSONObject) {
		return apperrors.NewLLMMalformedOutputError(err.Error())
	}
	switch KindOf(err) {
	case KindTimeout:
		return apperrors.NewLLMTimeoutError()
	case KindRateLimit, KindOverloaded:
		return apperrors.NewLLMRateLimitedError(err.Error())
	case KindAuth:
		if StatusOf(err) == 0 {
			return apperrors.NewConfigMissingError("openrouter.api_key")
		}
		return apperrors.NewLLMAuthFailedError(err.Error())
	case KindMalformed:
		return apperrors.NewLLMMalformedOutputError(err.Error())
	}
	return stage(err)
}

// StatusOf returns the HTTP status behind err, or 0.
func StatusOf(err error) int {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}

// UserMessage renders err as the Spanish text shown to end users.
func UserMessage(err error) string {
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "Timeout al conectar con OpenRouter"
		}
		return "Error de conexión con OpenRouter"
	}
	switch ce.Kind {
	case KindAuth:
		if ce.StatusCode == http.StatusUnauthorized || ce.StatusCode == 0 {
			return "API key inválida o no configurada"
		}
		return fmt.Sprintf("Error HTTP %d", ce.StatusCode)
	case KindRateLimit:
		return "Límite de tasa excedido"
	case KindTimeout:
		return "Timeout al conectar con OpenRouter"
	case KindConnection:
		return "Error de conexión con OpenRouter"
	case KindMalformed:
		return "Respuesta inválida de OpenRouter"
	default:
		if ce.StatusCode > 0 {
			return fmt.Sprintf("Error HTTP %d", ce.StatusCode)
		}
		return "Error de conexión con OpenRouter"
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func classifyHTTPError(resp *http.Response) *ClassifiedError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	ce := &ClassifiedError{StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ce.Kind = KindRateLimit
		ce.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		ce.Kind = KindAuth
	case resp.StatusCode == http.StatusNotFound:
		ce.Kind = KindNotFound
	case resp.StatusCode == http.StatusBadRequest:
		ce.Kind = KindBadRequest
	case resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout, resp.StatusCode == http.StatusInternalServerError:
		ce.Kind = KindOverloaded
	default:
		ce.Kind = KindUnknown
	}
	return ce
}

func classifyTransportError(ctx context.Context, err error) *ClassifiedError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: KindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClassifiedError{Kind: KindTimeout, Message: err.Error()}
	}
	return &ClassifiedError{Kind: KindConnection, Message: err.Error()}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
