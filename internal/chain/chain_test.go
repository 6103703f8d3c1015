package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type stubCaller struct {
	calls int
	resp  map[string][]byte
	err   error
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp[string(msg.Data[:4])], nil
}

func encodeUint(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func TestBalanceOfAndTotalSupply(t *testing.T) {
	tokenABI, err := getERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	caller := &stubCaller{resp: map[string][]byte{
		string(tokenABI.Methods["balanceOf"].ID):   encodeUint(1234),
		string(tokenABI.Methods["totalSupply"].ID): encodeUint(99),
	}}

	token := common.HexToAddress("0x0000000000000000000000000000000000001001")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	bal, err := BalanceOf(context.Background(), caller, token, owner, nil)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if bal.Int64() != 1234 {
		t.Fatalf("balance mismatch: %s", bal)
	}

	supply, err := TotalSupply(context.Background(), caller, token, nil)
	if err != nil {
		t.Fatalf("totalSupply: %v", err)
	}
	if supply.Int64() != 99 {
		t.Fatalf("supply mismatch: %s", supply)
	}
}

func TestBalanceOfErrors(t *testing.T) {
	token := common.HexToAddress("0x0000000000000000000000000000000000001001")
	if _, err := BalanceOf(context.Background(), nil, token, token, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}

	boom := errors.New("boom")
	if _, err := BalanceOf(context.Background(), &stubCaller{err: boom}, token, token, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped call error, got %v", err)
	}

	if _, err := TotalSupply(context.Background(), &stubCaller{resp: map[string][]byte{}}, token, nil); err == nil {
		t.Fatalf("expected unpack error for empty response")
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}

	attempts = 0
	err = withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil || attempts != 3 {
		t.Fatalf("expected failure after 3 attempts, got %v after %d", err, attempts)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		attempts++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}
