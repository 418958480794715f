package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"net/http"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
)

var validate = validator.New()

// readBody into json struct
func readBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

type jsonError struct {
	Message string `json:"error"`
}

// WriteError formatted in json
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	WriteResponse(w, &jsonError{Message: err.Error()}, statusCode)
}

// WriteResponse formatted in json
func WriteResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	resBody, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resBody)
}

// statusCode maps a service error to the response status
func statusCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrInsufficientFunds), errors.Is(err, apperr.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrUnknownReceiver):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrBidTooLow),
		errors.Is(err, apperr.ErrAuctionClosed),
		errors.Is(err, apperr.ErrContention):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnavailable), errors.Is(err, apperr.ErrDisconnected):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError logs and writes err with its mapped status
func writeServiceError(l logger.Logger, w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		l.Error().Err(err).Int("http_status", code).Send()
	} else {
		l.Debug().Err(err).Int("http_status", code).Send()
	}
	WriteError(w, err, code)
}

type ValidationErrorResponse struct {
	Errors ValidationErrors `json:"errors"`
}

type ValidationErrors []ValidationError

type ValidationError struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
	Value string `json:"value"`
}

// validateData and send errors, returns true if no validation errors
func validateData(w http.ResponseWriter, v interface{}) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		WriteError(w, err, http.StatusBadRequest)
		return false
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Msg:   fe.Error(),
			Param: fe.Field(),
			Value: fmt.Sprintf("%v", fe.Value()),
		})
	}
	writeValidationErrors(w, out)
	return false
}

// writeValidationErrors formatted in json
func writeValidationErrors(w http.ResponseWriter, errors ValidationErrors) {
	WriteResponse(w, ValidationErrorResponse{errors}, http.StatusBadRequest)
}

type ContextKeyUser struct{}

func ReadContextUser(ctx context.Context) (*model.User, error) {
	v := ctx.Value(ContextKeyUser{})
	if user, ok := v.(*model.User); ok {
		return user, nil
	}

	return nil, apperr.ErrUnauthorized
}

// WithContextUser stores the authorized user in ctx
func WithContextUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser{}, u)
}
