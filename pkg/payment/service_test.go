package payment

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/charges", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "4561261212345467", in.CardNumber)

		_ = json.NewEncoder(w).Encode(ChargeResponse{
			Reference: in.Reference,
			Status:    ChargeStatusApproved,
			Amount:    in.Amount,
		})
	}))
	defer srv.Close()

	s, err := NewService(srv.URL+"/", WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	out := &ChargeResponse{}
	err = s.Charge(context.Background(), &ChargeRequest{
		Reference:  "ref-1",
		CardNumber: "4561261212345467",
		Amount:     decimal.RequireFromString("12.50"),
	}, out)
	require.NoError(t, err)

	assert.True(t, out.Approved())
	assert.Equal(t, "ref-1", out.Reference)
	assert.True(t, decimal.RequireFromString("12.5").Equal(out.Amount))
}

func TestChargeRemoteError(t *testing.T) {
	for _, tc := range []struct {
		status    int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
	} {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			s, err := NewService(srv.URL, WithLogger(zerolog.Nop()))
			require.NoError(t, err)

			err = s.Charge(context.Background(), &ChargeRequest{Reference: "r"}, &ChargeResponse{})

			var re *RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tc.status, re.StatusCode)
			assert.Equal(t, tc.temporary, re.Temporary())
		})
	}
}

func TestNewServiceEmptyURL(t *testing.T) {
	_, err := NewService("")
	assert.Error(t, err)
}
