package jobxmemory_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxmemory"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxtest"
)

func TestMemoryQueue(t *testing.T) {
	jobxtest.Run(t, func(t *testing.T, now func() time.Time, r jobx.Retention) jobx.Queue {
		return jobxmemory.New(jobxmemory.WithClock(now), jobxmemory.WithRetention(r))
	})
}
