package enhancer_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/asyncx"
	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/enhancer"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	b := breakerx.New("probe", breakerx.Options{FailureThreshold: 1})
	_ = b.Do(context.Background(), func(context.Context) error { return errors.New("boom") })
	openErr := b.Do(context.Background(), func(context.Context) error { return nil })

	tests := []struct {
		name string
		err  error
		want enhancer.Kind
	}{
		{"nil", nil, enhancer.KindNone},
		{"drug not found", drug.NotFound("R9"), enhancer.KindNotFound},
		{"wrapped not found", jobx.Permanent(fmt.Errorf("load: %w", drug.NotFound("R9"))), enhancer.KindNotFound},
		{"limiter exceeded", limitx.Exceeded(30 * time.Second), enhancer.KindRateLimited},
		{"provider 429", errx.New("too many requests", errx.TypeRateLimit), enhancer.KindRateLimited},
		{"breaker open", openErr, enhancer.KindCircuitOpen},
		{"provider 503", errx.New("overloaded", errx.TypeUnavailable), enhancer.KindTransient},
		{"timeout", errors.Join(asyncx.ErrTimeout, context.DeadlineExceeded), enhancer.KindTransient},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, enhancer.KindTransient},
		{"reset message", errors.New("read tcp: connection reset by peer"), enhancer.KindTransient},
		{"canceled", fmt.Errorf("chat: %w", context.Canceled), enhancer.KindCanceled},
		{"bad request", errx.New("invalid model", errx.TypeValidation), enhancer.KindPermanent},
		{"unknown", errors.New("something odd"), enhancer.KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enhancer.Classify(tt.err))
		})
	}
}

func TestBreakerExpected(t *testing.T) {
	assert.True(t, enhancer.BreakerExpected(limitx.Exceeded(time.Second)))
	assert.True(t, enhancer.BreakerExpected(errx.New("invalid", errx.TypeValidation)))
	assert.False(t, enhancer.BreakerExpected(errx.New("down", errx.TypeUnavailable)))
	assert.False(t, enhancer.BreakerExpected(context.DeadlineExceeded))
	assert.True(t, enhancer.BreakerExpected(context.Canceled))
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, enhancer.KindTransient.Retryable())
	assert.True(t, enhancer.KindCircuitOpen.Retryable())
	assert.False(t, enhancer.KindRateLimited.Retryable())
	assert.False(t, enhancer.KindPermanent.Retryable())
	assert.Equal(t, "none", enhancer.KindNone.String())
}
