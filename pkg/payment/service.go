// Package payment is a client for the card payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"net/http"
	"strings"
)

type Service struct {
	apiURL     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func (s *Service) LoggerComponent() string {
	return "Payment.Service"
}

func NewService(apiURL string, opts ...ServiceOption) (*Service, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("empty gateway url")
	}

	c := &Service{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}

	for _, o := range opts {
		o(c)
	}

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	return c, nil
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

func (s *Service) Charge(ctx context.Context, in *ChargeRequest, out *ChargeResponse) error {
	l := s.logger.With().
		Str("method", "Charge").
		Str("reference", in.Reference).
		Str("amount", in.Amount.String()).
		Logger()
	ctx = l.WithContext(ctx)

	if err := s.genericCall(ctx, http.MethodPost, "/api/charges", in, out); err != nil {
		return err
	}

	l.Debug().
		Str("charge_status", out.Status).
		Str("charge_reason", out.Reason).
		Msg("Charge success")

	return nil
}

type RemoteError struct {
	ResponseBody string
	StatusCode   int
}

func NewRemoteError(responseBody string, statusCode int) *RemoteError {
	return &RemoteError{ResponseBody: responseBody, StatusCode: statusCode}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.ResponseBody)
}

// Temporary reports whether the same call may succeed later
func (e *RemoteError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (s *Service) genericCall(ctx context.Context, method, endpoint string, in interface{}, out interface{}) error {
	l := zerolog.Ctx(ctx).With().Str("http_method", method).Str("endpoint", endpoint).Logger()
	ctx = l.WithContext(ctx)

	res, err := s.request(ctx, method, endpoint, in)
	if err != nil {
		l.Error().Err(err).
			Msg("Service request failed")
		return fmt.Errorf("request: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode >= 400 {
		resBody := readString(res.Body)
		l.Error().
			Int("http_status", res.StatusCode).
			Str("http_body", resBody).
			Msg("Service responded with error")
		return NewRemoteError(resBody, res.StatusCode)
	}

	if err := readJSON(res.Body, out); err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	return nil
}

func (s *Service) request(
	ctx context.Context,
	method string,
	endpoint string,
	bodyParams interface{},
) (*http.Response, error) {
	fullURL := s.apiURL + endpoint
	l := zerolog.Ctx(ctx).With().
		Str("url", fullURL).
		Logger()
	l.Debug().Msg("HTTP request")

	rawJSON, err := json.Marshal(bodyParams)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		l.Error().Err(err).
			Msg("Call failed")
		return nil, fmt.Errorf("do request: %w", err)
	}

	return res, nil
}
