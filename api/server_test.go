package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/stardust/core"
	"github.com/raykavin/stardust/logger"
	"github.com/raykavin/stardust/storage"
)

const (
	testToken = "secret-token"
	pairKey   = "XLM_native_USDC_GISSUER"
)

var testProfile = core.UserProfile{UserID: "user-1", Account: "GTRADER"}

type testAPI struct {
	handler  http.Handler
	store    *storage.SQLStorage
	commands chan core.Command
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log, err := logger.New("error", false)
	require.NoError(t, err)

	commands := make(chan core.Command, 16)
	server := NewServer(store, commands, testProfile, testToken, log)

	return &testAPI{handler: server.Handler(), store: store, commands: commands}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (a *testAPI) createAlgo(t *testing.T, name string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/algo/create", map[string]any{
		"algo_name":           name,
		"trade_pair":          pairKey,
		"candle_size":         "15m",
		"strategy_name":       "macd_threshold",
		"strategy_parameters": map[string]float64{"stickiness": 2},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/list/algos", nil)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAuthRequired, decode(t, rec)["error_code"])

	req = httptest.NewRequest(http.MethodGet, "/list/algos", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlgoEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.createAlgo(t, "mine")

	rec := a.do(t, http.MethodGet, "/algo/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "mine", body["algo_name"])
	assert.Equal(t, pairKey, body["trade_pair"])
	assert.Equal(t, "15m", body["candle_size"])

	rec = a.do(t, http.MethodGet, "/list/algos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	algos := decode(t, rec)["algos"].([]any)
	assert.Len(t, algos, 1)

	rec = a.do(t, http.MethodGet, "/algo/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode(t, rec)["error_code"])

	rec = a.do(t, http.MethodPost, "/delete/algo/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/algo/mine", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAlgoValidation(t *testing.T) {
	a := newTestAPI(t)
	a.createAlgo(t, "mine")

	rec := a.do(t, http.MethodPost, "/algo/create", map[string]any{
		"algo_name":     "mine",
		"trade_pair":    pairKey,
		"candle_size":   "15m",
		"strategy_name": "macd_threshold",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeAlreadyExist, decode(t, rec)["error_code"])

	rec = a.do(t, http.MethodPost, "/algo/create", map[string]any{
		"algo_name":     "bad-pair",
		"trade_pair":    "XLM_native",
		"candle_size":   "15m",
		"strategy_name": "macd_threshold",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeIncorrectRequest, decode(t, rec)["error_code"])

	rec = a.do(t, http.MethodPost, "/algo/create", map[string]any{
		"algo_name":     "bad-size",
		"trade_pair":    pairKey,
		"candle_size":   "3m",
		"strategy_name": "macd_threshold",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/algo/create", map[string]any{
		"trade_pair":  pairKey,
		"candle_size": "15m",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeployEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.createAlgo(t, "mine")

	rec := a.do(t, http.MethodPost, "/algo/deploy", map[string]any{
		"algo_name":  "mine",
		"amount":     100.0,
		"num_cycles": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deployID := int64(decode(t, rec)["deploy_id"].(float64))
	require.NotZero(t, deployID)

	select {
	case cmd := <-a.commands:
		assert.Equal(t, core.CommandDeploy, cmd.Type)
		assert.Equal(t, deployID, cmd.Deployment.ID)
		assert.Equal(t, testProfile, cmd.Profile)
	case <-time.After(time.Second):
		t.Fatal("no deploy command enqueued")
	}

	rec = a.do(t, http.MethodGet, "/algo/deployed/status/"+itoa(deployID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(core.DeploymentNew), decode(t, rec)["status"])

	rec = a.do(t, http.MethodGet, "/algo/deployed/trades/"+itoa(deployID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["trades"])

	rec = a.do(t, http.MethodGet, "/list/algos/deployed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deployments := decode(t, rec)["deployments"].([]any)
	require.Len(t, deployments, 1)

	rec = a.do(t, http.MethodPost, "/algo/undeploy/"+itoa(deployID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case cmd := <-a.commands:
		assert.Equal(t, core.CommandUndeploy, cmd.Type)
		assert.Equal(t, deployID, cmd.DeploymentID)
	case <-time.After(time.Second):
		t.Fatal("no undeploy command enqueued")
	}

	rec = a.do(t, http.MethodPost, "/algo/undeploy/9999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployValidation(t *testing.T) {
	a := newTestAPI(t)
	a.createAlgo(t, "mine")

	rec := a.do(t, http.MethodPost, "/algo/deploy", map[string]any{
		"algo_name": "mine", "amount": 0.0, "num_cycles": 2,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/algo/deploy", map[string]any{
		"algo_name": "mine", "amount": 100.0, "num_cycles": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/algo/deploy", map[string]any{
		"algo_name": "missing", "amount": 100.0, "num_cycles": 2,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBacktestEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.createAlgo(t, "mine")

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := a.do(t, http.MethodPost, "/backtest/run", map[string]any{
		"algo_name": "mine",
		"start_ts":  start.Unix(),
		"end_ts":    start.Add(24 * time.Hour).Unix(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reqID := int64(decode(t, rec)["req_id"].(float64))
	require.NotZero(t, reqID)

	rec = a.do(t, http.MethodGet, "/backtest/status/"+itoa(reqID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(core.BacktestNew), decode(t, rec)["status"])

	rec = a.do(t, http.MethodGet, "/backtest/trades/"+itoa(reqID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["trades"])

	rec = a.do(t, http.MethodGet, "/list/backtests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	backtests := decode(t, rec)["backtests"].([]any)
	require.Len(t, backtests, 1)

	rec = a.do(t, http.MethodGet, "/backtest/status/9999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/backtest/run", map[string]any{
		"algo_name": "mine",
		"start_ts":  start.Unix(),
		"end_ts":    start.Unix(),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/backtest/run", map[string]any{
		"algo_name": "missing",
		"start_ts":  start.Unix(),
		"end_ts":    start.Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
