package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/stardust/core"
)

type createAlgoRequest struct {
	AlgoName           string             `json:"algo_name"`
	TradePair          string             `json:"trade_pair"`
	CandleSize         string             `json:"candle_size"`
	StrategyName       string             `json:"strategy_name"`
	StrategyParameters map[string]float64 `json:"strategy_parameters"`
}

func (s *Server) createAlgo(w http.ResponseWriter, r *http.Request) {
	var req createAlgoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "invalid request body")
		return
	}

	pair, err := core.ParsePairKey(req.TradePair)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, err.Error())
		return
	}
	resolution := core.Resolution(req.CandleSize)
	if !resolution.IsValid() {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "invalid candle_size")
		return
	}
	if req.AlgoName == "" || req.StrategyName == "" {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "algo_name and strategy_name are required")
		return
	}

	if _, err := s.storage.Algo(s.profile.UserID, req.AlgoName); err == nil {
		s.writeError(w, http.StatusConflict, CodeAlreadyExist, "algo already exists")
		return
	}

	algo := core.Algo{
		Name:         req.AlgoName,
		UserID:       s.profile.UserID,
		Pair:         pair,
		Resolution:   resolution,
		StrategyName: req.StrategyName,
		Parameters:   req.StrategyParameters,
	}
	if err := s.storage.CreateAlgo(algo); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			s.writeError(w, http.StatusConflict, CodeAlreadyExist, "algo already exists")
			return
		}
		s.storeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) listAlgos(w http.ResponseWriter, r *http.Request) {
	algos, err := s.storage.Algos(s.profile.UserID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"algos": algoViews(algos)})
}

func (s *Server) getAlgo(w http.ResponseWriter, r *http.Request) {
	algo, err := s.storage.Algo(s.profile.UserID, r.PathValue("name"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, algoView(algo))
}

func (s *Server) deleteAlgo(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteAlgo(s.profile.UserID, r.PathValue("name")); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type runBacktestRequest struct {
	AlgoName string `json:"algo_name"`
	StartTs  int64  `json:"start_ts"`
	EndTs    int64  `json:"end_ts"`
}

func (s *Server) runBacktest(w http.ResponseWriter, r *http.Request) {
	var req runBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "invalid request body")
		return
	}
	if req.EndTs <= req.StartTs {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "end_ts must be after start_ts")
		return
	}

	algo, err := s.storage.Algo(s.profile.UserID, req.AlgoName)
	if err != nil {
		s.storeError(w, err)
		return
	}

	request := core.BacktestRequest{
		UserID:       s.profile.UserID,
		AlgoName:     algo.Name,
		Pair:         algo.Pair,
		Resolution:   algo.Resolution,
		StrategyName: algo.StrategyName,
		Parameters:   algo.Parameters,
		Start:        time.Unix(req.StartTs, 0).UTC(),
		End:          time.Unix(req.EndTs, 0).UTC(),
		Status:       core.BacktestNew,
	}
	if err := s.storage.CreateBacktest(&request); err != nil {
		s.storeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"req_id": request.ID})
}

func (s *Server) backtestStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	request, err := s.storage.Backtest(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if request.UserID != s.profile.UserID {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "backtest not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(request.Status)})
}

func (s *Server) backtestTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	request, err := s.storage.Backtest(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if request.UserID != s.profile.UserID {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "backtest not found")
		return
	}

	trades, err := s.storage.BacktestTrades(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"trades": tradeViews(trades)})
}

func (s *Server) listBacktests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.storage.Backtests(s.profile.UserID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		views = append(views, map[string]any{
			"req_id":    request.ID,
			"algo_name": request.AlgoName,
			"start_ts":  request.Start.Unix(),
			"end_ts":    request.End.Unix(),
			"status":    string(request.Status),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"backtests": views})
}

type deployRequest struct {
	AlgoName  string  `json:"algo_name"`
	Amount    float64 `json:"amount"`
	NumCycles int     `json:"num_cycles"`
}

func (s *Server) deployAlgo(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "amount must be positive")
		return
	}
	if req.NumCycles <= 0 {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "num_cycles must be positive")
		return
	}

	if _, err := s.storage.Algo(s.profile.UserID, req.AlgoName); err != nil {
		s.storeError(w, err)
		return
	}

	deployment := core.Deployment{
		UserID:    s.profile.UserID,
		AlgoName:  req.AlgoName,
		Amount:    req.Amount,
		NumCycles: req.NumCycles,
		Status:    core.DeploymentNew,
	}
	if err := s.storage.CreateDeployment(&deployment); err != nil {
		s.storeError(w, err)
		return
	}

	err := s.enqueue(r, core.Command{
		Type:       core.CommandDeploy,
		Profile:    s.profile,
		Deployment: deployment,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"deploy_id": deployment.ID})
}

func (s *Server) undeployAlgo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	deployment, err := s.storage.Deployment(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if deployment.UserID != s.profile.UserID {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "deployment not found")
		return
	}

	err = s.enqueue(r, core.Command{Type: core.CommandUndeploy, DeploymentID: id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) deploymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	deployment, err := s.storage.Deployment(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if deployment.UserID != s.profile.UserID {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "deployment not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": string(deployment.Status)})
}

func (s *Server) deploymentTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	deployment, err := s.storage.Deployment(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if deployment.UserID != s.profile.UserID {
		s.writeError(w, http.StatusNotFound, CodeNotFound, "deployment not found")
		return
	}

	trades, err := s.storage.DeploymentTrades(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"trades": tradeViews(trades)})
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := s.storage.Deployments(s.profile.UserID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	views := make([]map[string]any, 0, len(deployments))
	for _, deployment := range deployments {
		views = append(views, map[string]any{
			"deploy_id":  deployment.ID,
			"algo_name":  deployment.AlgoName,
			"amount":     deployment.Amount,
			"num_cycles": deployment.NumCycles,
			"status":     string(deployment.Status),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deployments": views})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeIncorrectRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func algoView(a core.Algo) map[string]any {
	return map[string]any{
		"algo_name":           a.Name,
		"trade_pair":          a.Pair.Key(),
		"candle_size":         string(a.Resolution),
		"strategy_name":       a.StrategyName,
		"strategy_parameters": a.Parameters,
	}
}

func algoViews(algos []core.Algo) []map[string]any {
	views := make([]map[string]any, 0, len(algos))
	for _, algo := range algos {
		views = append(views, algoView(algo))
	}
	return views
}

func tradeViews(trades []core.TradeRecord) []map[string]any {
	views := make([]map[string]any, 0, len(trades))
	for _, trade := range trades {
		views = append(views, map[string]any{
			"ts":            trade.Time.Unix(),
			"advice":        string(trade.Advice),
			"sold_asset":    trade.SoldAsset,
			"sold_amount":   trade.SoldAmount,
			"bought_asset":  trade.BoughtAsset,
			"bought_amount": trade.BoughtAmount,
		})
	}
	return views
}
