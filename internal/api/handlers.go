package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
	"ammEngine/internal/pool"
)

type initializeBody struct {
	Seed      uint64          `json:"seed"`
	FeeBps    uint16          `json:"fee_bps"`
	Authority *common.Address `json:"authority,omitempty"`
	MintX     common.Address  `json:"mint_x"`
	MintY     common.Address  `json:"mint_y"`
	Actor     common.Address  `json:"actor"`
}

type depositBody struct {
	Actor      common.Address `json:"actor"`
	Shares     uint64         `json:"shares"`
	MaxX       uint64         `json:"max_x"`
	MaxY       uint64         `json:"max_y"`
	Expiration int64          `json:"expiration"`
}

type withdrawBody struct {
	Actor      common.Address `json:"actor"`
	Shares     uint64         `json:"shares"`
	MinX       uint64         `json:"min_x"`
	MinY       uint64         `json:"min_y"`
	Expiration int64          `json:"expiration"`
}

type swapBody struct {
	Actor        common.Address `json:"actor"`
	In           string         `json:"in"`
	AmountIn     uint64         `json:"amount_in"`
	MinAmountOut uint64         `json:"min_amount_out"`
	Expiration   int64          `json:"expiration"`
}

type actorBody struct {
	Actor common.Address `json:"actor"`
}

type swapResponse struct {
	curve.SwapResult
	Pool model.Pool `json:"pool"`
}

type depositResponse struct {
	curve.DepositResult
	Pool model.Pool `json:"pool"`
}

type withdrawResponse struct {
	curve.WithdrawResult
	Pool model.Pool `json:"pool"`
}

type quoteResponse struct {
	Kind   string      `json:"kind"`
	Result interface{} `json:"result"`
	After  curve.State `json:"after"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.svc.List(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	if pools == nil {
		pools = []model.Pool{}
	}
	s.writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	addr, err := poolID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	view, err := s.svc.Get(r.Context(), addr)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var body initializeBody
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	p, err := s.svc.Initialize(r.Context(), pool.InitializeRequest{
		Seed:      body.Seed,
		FeeBps:    body.FeeBps,
		Authority: body.Authority,
		MintX:     body.MintX,
		MintY:     body.MintY,
		Actor:     body.Actor,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	addr, err := poolID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	var body depositBody
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	res, p, err := s.svc.Deposit(r.Context(), pool.DepositRequest{
		Pool:       addr,
		Actor:      body.Actor,
		Shares:     body.Shares,
		MaxX:       body.MaxX,
		MaxY:       body.MaxY,
		Expiration: body.Expiration,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, depositResponse{DepositResult: res, Pool: p})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	addr, err := poolID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	var body withdrawBody
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	res, p, err := s.svc.Withdraw(r.Context(), pool.WithdrawRequest{
		Pool:       addr,
		Actor:      body.Actor,
		Shares:     body.Shares,
		MinX:       body.MinX,
		MinY:       body.MinY,
		Expiration: body.Expiration,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, withdrawResponse{WithdrawResult: res, Pool: p})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	addr, err := poolID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	var body swapBody
	if err := decodeBody(r, &body); err != nil {
		s.handleError(w, err)
		return
	}
	in, err := curve.ParseAsset(body.In)
	if err != nil {
		s.handleError(w, err)
		return
	}
	res, p, err := s.svc.Swap(r.Context(), pool.SwapRequest{
		Pool:         addr,
		Actor:        body.Actor,
		In:           in,
		AmountIn:     body.AmountIn,
		MinAmountOut: body.MinAmountOut,
		Expiration:   body.Expiration,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, swapResponse{SwapResult: res, Pool: p})
}

func (s *Server) handleLock(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := poolID(r)
		if err != nil {
			s.handleError(w, err)
			return
		}
		var body actorBody
		if err := decodeBody(r, &body); err != nil {
			s.handleError(w, err)
			return
		}
		var p model.Pool
		if locked {
			p, err = s.svc.Lock(r.Context(), addr, body.Actor)
		} else {
			p, err = s.svc.Unlock(r.Context(), addr, body.Actor)
		}
		if err != nil {
			s.handleError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

// handleQuote serves /pools/{id}/quote?kind=swap&in=x&amount=N and
// ?kind=deposit|withdraw&shares=N.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	addr, err := poolID(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = "swap"
	}

	resp := quoteResponse{Kind: kind}
	switch kind {
	case "swap":
		in, err := curve.ParseAsset(q.Get("in"))
		if err != nil {
			s.handleError(w, err)
			return
		}
		amount, err := queryUint(q.Get("amount"), "amount")
		if err != nil {
			s.handleError(w, err)
			return
		}
		res, after, err := s.svc.QuoteSwap(r.Context(), addr, in, amount)
		if err != nil {
			s.handleError(w, err)
			return
		}
		resp.Result, resp.After = res, after
	case "deposit", "withdraw":
		shares, err := queryUint(q.Get("shares"), "shares")
		if err != nil {
			s.handleError(w, err)
			return
		}
		if kind == "deposit" {
			res, after, err := s.svc.QuoteDeposit(r.Context(), addr, shares)
			if err != nil {
				s.handleError(w, err)
				return
			}
			resp.Result, resp.After = res, after
		} else {
			res, after, err := s.svc.QuoteWithdraw(r.Context(), addr, shares)
			if err != nil {
				s.handleError(w, err)
				return
			}
			resp.Result, resp.After = res, after
		}
	default:
		s.handleError(w, newError(http.StatusBadRequest, "unknown quote kind "+strconv.Quote(kind)))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func poolID(r *http.Request) (common.Address, error) {
	addr, err := model.ParsePoolID(mux.Vars(r)["id"])
	if err != nil {
		return common.Address{}, ErrInvalidPoolID
	}
	return addr, nil
}

func queryUint(raw, param string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, NewInvalidQuery(param, err)
	}
	return v, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ErrInvalidBody
	}
	return nil
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		s.writeJSON(w, apiErr.Status, map[string]string{"error": apiErr.Message})
		return
	}
	status, known := statusFor(err)
	if !known {
		s.logger.Error("request failed", zap.Error(err))
		s.writeJSON(w, ErrInternal.Status, map[string]string{"error": ErrInternal.Message})
		return
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}
