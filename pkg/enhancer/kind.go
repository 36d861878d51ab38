package enhancer

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/asyncx"
	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
)

// Kind tags a failure with the recovery it calls for.
type Kind string

const (
	KindNone        Kind = ""
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindCircuitOpen Kind = "circuit_open"
	KindCanceled    Kind = "canceled"
	KindPermanent   Kind = "permanent"
)

func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Retryable reports whether the queue should try the record again soon.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindCircuitOpen
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"econnreset",
	"econnrefused",
	"etimedout",
	"broken pipe",
	"no such host",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"overloaded",
	"eof",
}

// Classify maps an error from the pipeline to its Kind. Anything it does not
// recognise is Permanent.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errx.IsCode(err, drug.ErrNotFound) {
		return KindNotFound
	}
	if errx.IsCode(err, limitx.ErrExceeded) || errx.IsCode(err, ErrRateLimited) {
		return KindRateLimited
	}
	if breakerx.IsOpen(err) {
		return KindCircuitOpen
	}
	if errx.IsCode(err, limitx.ErrCounter) {
		return KindTransient
	}
	if e, ok := errx.As(err); ok {
		switch e.Type {
		case errx.TypeRateLimit:
			return KindRateLimited
		case errx.TypeUnavailable:
			return KindTransient
		}
	}
	if errors.Is(err, asyncx.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return KindTransient
		}
	}
	return KindPermanent
}

// BreakerExpected reports errors that must not trip the generation breaker:
// quota signals and failures a retry would not fix.
func BreakerExpected(err error) bool {
	switch Classify(err) {
	case KindRateLimited, KindPermanent, KindNotFound, KindCanceled:
		return true
	}
	return false
}
