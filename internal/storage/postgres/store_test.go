package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestClampInt64(t *testing.T) {
	cases := []struct {
		in   uint64
		want int64
	}{
		{0, 0},
		{42, 42},
		{math.MaxInt64, math.MaxInt64},
		{math.MaxUint64, math.MaxInt64},
	}
	for _, tc := range cases {
		if got := clampInt64(tc.in); got != tc.want {
			t.Fatalf("clampInt64(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestAuthorityHex(t *testing.T) {
	if authorityHex(nil) != nil {
		t.Fatalf("nil authority should encode as NULL")
	}
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	got := authorityHex(&a)
	if got == nil || *got != a.Hex() {
		t.Fatalf("unexpected authority encoding: %v", got)
	}
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
