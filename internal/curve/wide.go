package curve

import (
	smath "github.com/ava-labs/avalanchego/utils/math"
	"github.com/holiman/uint256"
)

// maxWideBits is the width of every intermediate product. Values are carried in
// a 256-bit word but must never leave the low 128 bits.
const maxWideBits = 128

func wide(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func wideMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow || z.BitLen() > maxWideBits {
		return nil, ErrOverflow
	}
	return z, nil
}

func wideAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow || z.BitLen() > maxWideBits {
		return nil, ErrOverflow
	}
	return z, nil
}

func wideSub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// wideDiv floors x/y. A zero divisor is reported as ErrOverflow.
func wideDiv(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Div(x, y), nil
}

func narrow(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

func add64(a, b uint64) (uint64, error) {
	v, err := smath.Add64(a, b)
	if err != nil {
		return 0, ErrOverflow
	}
	return v, nil
}

func sub64(a, b uint64) (uint64, error) {
	v, err := smath.Sub(a, b)
	if err != nil {
		return 0, ErrUnderflow
	}
	return v, nil
}
