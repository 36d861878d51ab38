package scanner

import (
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
)

// Tier is the coarse priority of a missing-content job.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

const day = 24 * time.Hour

// TierFor buckets a drug by how long ago it was created.
func TierFor(age time.Duration) Tier {
	switch {
	case age <= 7*day:
		return TierHigh
	case age <= 30*day:
		return TierMedium
	default:
		return TierLow
	}
}

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// Priority is the queue priority for the tier.
func (t Tier) Priority() int {
	switch t {
	case TierHigh:
		return jobx.PriorityHigh
	case TierMedium:
		return jobx.PriorityMedium
	default:
		return jobx.PriorityLow
	}
}

// MaxDelay bounds the random dispatch delay for the tier.
func (t Tier) MaxDelay() time.Duration {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 10 * time.Second
	default:
		return time.Minute
	}
}
