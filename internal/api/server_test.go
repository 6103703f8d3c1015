package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammEngine/internal/model"
	"ammEngine/internal/pool"
	"ammEngine/internal/storage"
)

const (
	authority = "0x00000000000000000000000000000000000000a1"
	trader    = "0x00000000000000000000000000000000000000b0"
	mintX     = "0x0000000000000000000000000000000000001001"
	mintY     = "0x0000000000000000000000000000000000001002"
)

type noopLedger struct{}

func (noopLedger) Append(_ context.Context, _ []model.Operation) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := pool.NewMetrics(reg)
	require.NoError(t, err)

	svc := pool.NewService(
		storage.NewMemoryStore(noopLedger{}),
		pool.WithMetrics(metrics),
		pool.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	srv := httptest.NewServer(NewServer(svc, reg, nil, "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

// seed creates pool 1 with 20 X, 30 Y and 30 shares at a 10% fee.
func seed(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status, _ := do(t, srv, http.MethodPost, "/pools",
		`{"seed":1,"fee_bps":1000,"authority":"`+authority+`","mint_x":"`+mintX+`","mint_y":"`+mintY+`","actor":"`+authority+`"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, srv, http.MethodPost, "/pools/1/deposit",
		`{"actor":"`+trader+`","shares":30,"max_x":20,"max_y":30}`)
	require.Equal(t, http.StatusOK, status, body)
}

func TestSwapFlow(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	status, body := do(t, srv, http.MethodGet, "/pools/1/quote?in=x&amount=5", "")
	require.Equal(t, http.StatusOK, status, body)
	result := body["result"].(map[string]interface{})
	assert.EqualValues(t, 5, result["withdrawn"])

	status, body = do(t, srv, http.MethodPost, "/pools/1/swap",
		`{"actor":"`+trader+`","in":"x","amount_in":5,"min_amount_out":5}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 5, body["withdrawn"])
	assert.EqualValues(t, 1, body["fee"])

	addr := model.PoolAddress(1).Hex()
	status, body = do(t, srv, http.MethodGet, "/pools/"+addr, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 24, body["balance_x"])
	assert.EqualValues(t, 25, body["balance_y"])
	assert.Equal(t, "600", body["invariant"])
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown pool", http.MethodGet, "/pools/99", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/pools/0xnothex", "", http.StatusBadRequest},
		{"duplicate pool", http.MethodPost, "/pools", `{"seed":1,"mint_x":"` + mintX + `","mint_y":"` + mintY + `"}`, http.StatusConflict},
		{"identical mints", http.MethodPost, "/pools", `{"seed":2,"mint_x":"` + mintX + `","mint_y":"` + mintX + `"}`, http.StatusBadRequest},
		{"slippage", http.MethodPost, "/pools/1/swap", `{"in":"x","amount_in":5,"min_amount_out":6}`, http.StatusConflict},
		{"zero amount", http.MethodPost, "/pools/1/swap", `{"in":"x","amount_in":0}`, http.StatusBadRequest},
		{"unknown asset", http.MethodPost, "/pools/1/swap", `{"in":"z","amount_in":5}`, http.StatusBadRequest},
		{"expired", http.MethodPost, "/pools/1/deposit", `{"shares":1,"max_x":10,"max_y":10,"expiration":1}`, http.StatusConflict},
		{"burn too many", http.MethodPost, "/pools/1/withdraw", `{"shares":31}`, http.StatusUnprocessableEntity},
		{"wrong authority", http.MethodPost, "/pools/1/lock", `{"actor":"` + trader + `"}`, http.StatusForbidden},
		{"malformed body", http.MethodPost, "/pools/1/swap", `{"in":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/pools/1/swap", `{"asset":"x"}`, http.StatusBadRequest},
		{"bad quote amount", http.MethodGet, "/pools/1/quote?in=x&amount=-1", "", http.StatusBadRequest},
		{"bad quote kind", http.MethodGet, "/pools/1/quote?kind=mint", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestLockBlocksTrading(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	status, body := do(t, srv, http.MethodPost, "/pools/1/lock", `{"actor":"`+authority+`"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["locked"])

	status, _ = do(t, srv, http.MethodPost, "/pools/1/swap", `{"in":"y","amount_in":10}`)
	assert.Equal(t, http.StatusLocked, status)

	status, _ = do(t, srv, http.MethodPost, "/pools/1/unlock", `{"actor":"`+authority+`"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = do(t, srv, http.MethodPost, "/pools/1/swap", `{"in":"y","amount_in":10}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestQuoteLiquidity(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	status, body := do(t, srv, http.MethodGet, "/pools/1/quote?kind=withdraw&shares=15", "")
	require.Equal(t, http.StatusOK, status, body)
	result := body["result"].(map[string]interface{})
	assert.EqualValues(t, 10, result["withdrawn_x"])
	assert.EqualValues(t, 15, result["withdrawn_y"])

	status, body = do(t, srv, http.MethodGet, "/pools/1/quote?kind=deposit&shares=3", "")
	require.Equal(t, http.StatusOK, status, body)
	result = body["result"].(map[string]interface{})
	assert.EqualValues(t, 2, result["deposited_x"])
	assert.EqualValues(t, 3, result["deposited_y"])
}

func TestListHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/pools")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))

	seed(t, srv)

	status, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "amm_operations_total")
	assert.Contains(t, string(raw), "amm_pool_total_shares")
}

func TestStatusForWrappedConflict(t *testing.T) {
	status, ok := statusFor(fmt.Errorf("save pool: %w", pool.ErrPoolConflict))
	assert.True(t, ok)
	assert.Equal(t, http.StatusConflict, status)
}
