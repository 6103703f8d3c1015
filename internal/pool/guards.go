package pool

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
)

// AssertNonZero fails when any of values is zero.
func AssertNonZero(values ...uint64) error {
	for _, v := range values {
		if v == 0 {
			return curve.ErrZeroAmount
		}
	}
	return nil
}

func AssertNotLocked(locked bool) error {
	if locked {
		return ErrPoolLocked
	}
	return nil
}

// AssertNotExpired fails once now is past the unix expiration. A zero
// expiration never expires.
func AssertNotExpired(now time.Time, expiration int64) error {
	if expiration == 0 {
		return nil
	}
	if now.Unix() > expiration {
		return fmt.Errorf("%w: deadline %d, now %d", ErrOfferExpired, expiration, now.Unix())
	}
	return nil
}

// HasUpdateAuthority checks that actor may change the pool config.
func HasUpdateAuthority(p model.Pool, actor common.Address) error {
	if p.Authority == nil {
		return ErrNoAuthoritySet
	}
	if *p.Authority != actor {
		return ErrInvalidAuthority
	}
	return nil
}
