package jobxredis

import "github.com/Abraxas-365/drugcontent/pkg/errx"

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrDecode = redisErrors.Register("DECODE", errx.TypeInternal, "Stored job could not be decoded")
)
