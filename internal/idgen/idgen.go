// Package idgen issues backtest run identifiers.
package idgen

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Epoch is the zero point of sequence timestamps (2025-02-11 00:00:00 UTC).
const Epoch int64 = 1739232000

const countBits = 32

// Sequence issues ids of the form (seconds since Epoch) << 32 | n, where n
// counts calls within the same second starting from 1. The counter is
// shared by every category, so ids are unique across strategies. The
// second never moves backwards: a clock step back keeps counting in the
// last second seen.
type Sequence struct {
	mu     sync.Mutex
	now    func() time.Time
	second int64
	count  int64
}

// NewSequence creates a sequence issuer on the wall clock
func NewSequence() *Sequence {
	return NewSequenceWithClock(time.Now)
}

// NewSequenceWithClock creates a sequence issuer reading time from now
func NewSequenceWithClock(now func() time.Time) *Sequence {
	return &Sequence{now: now}
}

// NextID implements backtest.IDIssuer
func (s *Sequence) NextID(ctx context.Context, category string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sec := max(s.now().Unix(), s.second)
	if sec-Epoch < 0 {
		return "", fmt.Errorf("clock %d is before the id epoch", sec)
	}
	if sec > s.second {
		s.second = sec
		s.count = 0
	}
	if s.count+1 >= 1<<countBits {
		return "", fmt.Errorf("sequence exhausted in second %d", sec)
	}
	s.count++

	return strconv.FormatInt((sec-Epoch)<<countBits|s.count, 10), nil
}

// Decode splits a sequence id into its timestamp and counter.
func Decode(id string) (time.Time, int64, error) {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parsing id %q: %w", id, err)
	}
	ts := v >> countBits
	count := v & (1<<countBits - 1)
	return time.Unix(ts+Epoch, 0).UTC(), count, nil
}

// UUID issues random v4 identifiers prefixed with the category.
type UUID struct{}

// NextID implements backtest.IDIssuer
func (UUID) NextID(ctx context.Context, category string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return category + "-" + uuid.New().String(), nil
}

// Issuer hands out ids unique across categories.
type Issuer interface {
	NextID(ctx context.Context, category string) (string, error)
}

// New returns the issuer named by kind: "sequence" (default) or "uuid".
func New(kind string) (Issuer, error) {
	switch kind {
	case "", "sequence":
		return NewSequence(), nil
	case "uuid":
		return UUID{}, nil
	}
	return nil, fmt.Errorf("unknown id issuer %q", kind)
}
