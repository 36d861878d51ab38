package jobxredis

import (
	"strconv"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
)

// Timestamps are stored as unix milliseconds; "0" means unset.

func encode(j *jobx.JobInfo, waitScore float64) map[string]interface{} {
	delayUntil := "0"
	if j.DelayUntil != nil {
		delayUntil = ms(*j.DelayUntil)
	}
	return map[string]interface{}{
		"id":           j.ID,
		"type":         j.Type,
		"queue":        j.Queue,
		"payload":      string(j.Payload),
		"priority":     j.Priority,
		"wait_score":   strconv.FormatFloat(waitScore, 'f', -1, 64),
		"state":        string(j.State),
		"progress":     j.Progress,
		"attempts":     j.Attempts,
		"max_attempts": j.MaxAttempts,
		"deferrals":    j.Deferrals,
		"delay_until":  delayUntil,
		"result":       string(j.Result),
		"error":        j.Error,
		"created_at":   ms(j.CreatedAt),
		"updated_at":   ms(j.UpdatedAt),
		"started_at":   "0",
		"finished_at":  "0",
	}
}

type fieldReader struct {
	fields map[string]string
	err    error
}

func (r *fieldReader) int(name string) int {
	v, ok := r.fields[name]
	if !ok || v == "" || r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = err
	}
	return n
}

func (r *fieldReader) time(name string) time.Time {
	v, ok := r.fields[name]
	if !ok || v == "" || v == "0" || r.err != nil {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = err
		return time.Time{}
	}
	return time.UnixMilli(n)
}

func (r *fieldReader) optTime(name string) *time.Time {
	t := r.time(name)
	if t.IsZero() {
		return nil
	}
	return &t
}

func decode(fields map[string]string) (*jobx.JobInfo, error) {
	r := &fieldReader{fields: fields}
	info := &jobx.JobInfo{
		ID:          fields["id"],
		Type:        fields["type"],
		Queue:       fields["queue"],
		Payload:     []byte(fields["payload"]),
		Priority:    r.int("priority"),
		State:       jobx.State(fields["state"]),
		Progress:    r.int("progress"),
		Attempts:    r.int("attempts"),
		MaxAttempts: r.int("max_attempts"),
		Deferrals:   r.int("deferrals"),
		DelayUntil:  r.optTime("delay_until"),
		Error:       fields["error"],
		CreatedAt:   r.time("created_at"),
		UpdatedAt:   r.time("updated_at"),
		StartedAt:   r.optTime("started_at"),
		FinishedAt:  r.optTime("finished_at"),
	}
	if res := fields["result"]; res != "" {
		info.Result = []byte(res)
	}
	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}
