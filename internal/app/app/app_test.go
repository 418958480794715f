package app

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"townmarket/internal/app/config"
	"townmarket/internal/app/logger"
	"townmarket/pkg/payment"
)

type client struct {
	t   *testing.T
	url string
}

func (c *client) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.url+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (c *client) register(phone, name string) string {
	c.t.Helper()

	var out struct {
		Token string `json:"token"`
	}
	code := c.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"login":    phone,
		"name":     name,
		"password": "password1",
	}, &out)
	require.Equal(c.t, http.StatusOK, code)
	require.NotEmpty(c.t, out.Token)
	return out.Token
}

func (c *client) balance(token string) string {
	c.t.Helper()

	var out struct {
		Current string `json:"current"`
	}
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/wallet/balance", token, nil, &out))
	return out.Current
}

func newTestApp(t *testing.T) *client {
	t.Helper()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in payment.ChargeRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(payment.ChargeResponse{
			Reference: in.Reference,
			Status:    payment.ChargeStatusApproved,
			Amount:    in.Amount,
		})
	}))
	t.Cleanup(gw.Close)

	cfg := config.New()
	cfg.Namespace = "test"
	cfg.CurrencyExponent = 2
	cfg.SecretKey = "test"
	cfg.Server.TimeoutWrite = 5 * time.Second
	cfg.Ledger.RetryAttempts = 5
	cfg.Ledger.Workers = 1
	cfg.Payment.RemoteURL = gw.URL

	a, err := New(context.Background(), cfg, logger.Nop(), embed.FS{})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		a.Stop()
	})

	return &client{t: t, url: srv.URL}
}

func TestWalletFlow(t *testing.T) {
	c := newTestApp(t)

	ann := c.register("+15550001", "Ann")
	bob := c.register("+15550002", "Bob")

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"login": "+15550001", "name": "Ann", "password": "password1",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/wallet/balance", "", nil, nil))
	assert.Equal(t, "0", c.balance(ann))

	code := c.do(http.MethodPost, "/api/wallet/deposit", ann, map[string]string{
		"card_number": "4561261212345467",
		"amount":      "100.00",
	}, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100", c.balance(ann))

	var receipt struct {
		TransactionID string `json:"transaction_id"`
		Balance       string `json:"balance"`
	}
	code = c.do(http.MethodPost, "/api/wallet/transfer", ann, map[string]string{"to": "+15550002", "amount": "40"}, &receipt)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, receipt.TransactionID)
	assert.Equal(t, "60", receipt.Balance)
	assert.Equal(t, "40", c.balance(bob))

	assert.Equal(t, http.StatusPaymentRequired,
		c.do(http.MethodPost, "/api/wallet/transfer", ann, map[string]string{"to": "+15550002", "amount": "1000"}, nil))
	assert.Equal(t, http.StatusNotFound,
		c.do(http.MethodPost, "/api/wallet/transfer", ann, map[string]string{"to": "+15559999", "amount": "1"}, nil))
	assert.Equal(t, http.StatusBadRequest,
		c.do(http.MethodPost, "/api/wallet/transfer", ann, map[string]string{"to": "+15550002", "amount": "0.001"}, nil))
	assert.Equal(t, "60", c.balance(ann))

	var records []struct {
		TransactionID string `json:"transaction_id"`
		Direction     string `json:"direction"`
		Kind          string `json:"kind"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/wallet/transactions", ann, nil, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "deposit", records[0].Kind)
	assert.Equal(t, "debit", records[1].Direction)
	assert.Equal(t, receipt.TransactionID, records[1].TransactionID)

	assert.Eventually(t, func() bool {
		var feed []struct {
			Type string `json:"type"`
		}
		code := c.do(http.MethodGet, "/api/notifications", bob, nil, &feed)
		return code == http.StatusOK && len(feed) == 1 && feed[0].Type == "transfer_received"
	}, time.Second, 10*time.Millisecond)
}

type streamUpdate struct {
	State   string `json:"state"`
	Leading *struct {
		Amount   string `json:"amount"`
		BidderID string `json:"bidder_id"`
	} `json:"leading"`
}

func readEvent(t *testing.T, r *bufio.Reader) streamUpdate {
	t.Helper()

	var u streamUpdate
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &u))
			return u
		}
	}
}

func TestAuctionFlow(t *testing.T) {
	c := newTestApp(t)

	seller := c.register("+15550001", "Sam")
	bidder := c.register("+15550002", "Bea")

	var a struct {
		ID string `json:"id"`
	}
	code := c.do(http.MethodPost, "/api/auctions", seller, map[string]string{
		"title":         "Bicycle",
		"starting_bid":  "1000",
		"min_increment": "100",
	}, &a)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, a.ID)

	bids := "/api/auctions/" + a.ID + "/bids"
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, bids, bidder, map[string]string{"amount": "1050"}, nil))
	assert.Equal(t, http.StatusCreated, c.do(http.MethodPost, bids, bidder, map[string]string{"amount": "1100"}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, bids, seller, map[string]string{"amount": "5000"}, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, bids, "", map[string]string{"amount": "5000"}, nil))

	var got struct {
		Leading struct {
			Amount string `json:"amount"`
		} `json:"leading"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/auctions/"+a.ID, "", nil, &got))
	assert.Equal(t, "1100", got.Leading.Amount)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/auctions/3f2504e0-4f89-11d3-9a0c-0305e82c3301", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/auctions/nope", "", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/auctions/"+a.ID+"/stream", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	r := bufio.NewReader(res.Body)
	u := readEvent(t, r)
	assert.Equal(t, "live", u.State)
	require.NotNil(t, u.Leading)
	assert.Equal(t, "1100", u.Leading.Amount)

	assert.Equal(t, http.StatusCreated, c.do(http.MethodPost, bids, bidder, map[string]string{"amount": "1300"}, nil))

	u = readEvent(t, r)
	require.NotNil(t, u.Leading)
	assert.Equal(t, "1300", u.Leading.Amount)
	assert.Equal(t, "+15550002", u.Leading.BidderID)
}
