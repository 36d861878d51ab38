package monitor

import (
	"strings"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the Monitor over HTTP.
type Handlers struct {
	monitor *Monitor
}

func NewHandlers(m *Monitor) *Handlers {
	return &Handlers{monitor: m}
}

// RegisterRoutes mounts the admin API under /api/v1/admin.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	api := router.Group("/api/v1/admin")

	api.Get("/health", h.health)

	queues := api.Group("/queues")
	queues.Get("/", h.allStats)
	queues.Get("/:queue", h.stats)
	queues.Post("/:queue/pause", h.pause)
	queues.Post("/:queue/resume", h.resume)
	queues.Post("/:queue/clean", h.clean)
	queues.Get("/:queue/jobs", h.listJobs)
	queues.Get("/:queue/jobs/:id", h.getJob)
	queues.Post("/:queue/jobs/:id/retry", h.retryJob)
	queues.Delete("/:queue/jobs/:id", h.removeJob)

	api.Post("/scans/:kind", h.triggerScan)
	api.Post("/batches", h.enqueueBatch)

	api.Get("/rate-limit", h.rateLimit)
	api.Post("/rate-limit/reset", h.resetRateLimit)

	api.Get("/breakers", h.breakers)
	api.Post("/breakers/:name/reset", h.resetBreaker)
}

func (h *Handlers) health(c *fiber.Ctx) error {
	health := h.monitor.Health(c.UserContext())
	status := fiber.StatusOK
	if !health.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(health)
}

func (h *Handlers) allStats(c *fiber.Ctx) error {
	stats, err := h.monitor.AllStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"queues": stats})
}

func (h *Handlers) stats(c *fiber.Ctx) error {
	st, err := h.monitor.Stats(c.UserContext(), c.Params("queue"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *Handlers) pause(c *fiber.Ctx) error {
	if err := h.monitor.Pause(c.UserContext(), c.Params("queue")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"queue": c.Params("queue"), "paused": true})
}

func (h *Handlers) resume(c *fiber.Ctx) error {
	if err := h.monitor.Resume(c.UserContext(), c.Params("queue")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"queue": c.Params("queue"), "paused": false})
}

// clean takes older_than_ms and an optional state (completed by default).
func (h *Handlers) clean(c *fiber.Ctx) error {
	ms := c.QueryInt("older_than_ms", -1)
	if ms < 0 {
		return invalidInput("older_than_ms is required and must not be negative")
	}
	state := jobx.State(c.Query("state", string(jobx.StateCompleted)))

	n, err := h.monitor.Clean(c.UserContext(), c.Params("queue"), state, time.Duration(ms)*time.Millisecond)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"queue": c.Params("queue"), "state": state, "removed": n})
}

func (h *Handlers) listJobs(c *fiber.Ctx) error {
	state := jobx.State(c.Query("state", string(jobx.StateFailed)))
	limit := c.QueryInt("limit", 50)

	jobs, err := h.monitor.ListJobs(c.UserContext(), c.Params("queue"), state, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"queue": c.Params("queue"), "state": state, "jobs": jobs})
}

func (h *Handlers) getJob(c *fiber.Ctx) error {
	job, err := h.monitor.GetJob(c.UserContext(), c.Params("queue"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

func (h *Handlers) retryJob(c *fiber.Ctx) error {
	if err := h.monitor.RetryJob(c.UserContext(), c.Params("queue"), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "retried": true})
}

func (h *Handlers) removeJob(c *fiber.Ctx) error {
	if err := h.monitor.RemoveJob(c.UserContext(), c.Params("queue"), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) triggerScan(c *fiber.Ctx) error {
	res, err := h.monitor.TriggerScan(c.UserContext(), scanner.Kind(c.Params("kind")))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(res)
}

type batchRequest struct {
	DrugIDs        []string `json:"drugIds"`
	ProcessingType string   `json:"processingType"`
	Initiator      string   `json:"initiator"`
}

func (h *Handlers) enqueueBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidInput("request body must be JSON")
	}
	if req.Initiator == "" {
		req.Initiator = "admin-api"
	}
	res, err := h.monitor.EnqueueBatch(c.UserContext(), normalizeIDs(req.DrugIDs), req.ProcessingType, req.Initiator)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(res)
}

func (h *Handlers) rateLimit(c *fiber.Ctx) error {
	st, err := h.monitor.RateLimitStatus(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *Handlers) resetRateLimit(c *fiber.Ctx) error {
	if err := h.monitor.ResetRateLimit(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reset": true})
}

func (h *Handlers) breakers(c *fiber.Ctx) error {
	stats, err := h.monitor.Breakers(c.Query("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"breakers": stats})
}

func (h *Handlers) resetBreaker(c *fiber.Ctx) error {
	if err := h.monitor.ResetBreaker(c.Params("name")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"breaker": c.Params("name"), "reset": true})
}

// ErrorHandler renders errx errors with their HTTP status. It is meant for
// fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID := c.Get("X-Request-ID")

	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error":      e.Message,
			"code":       "HTTP_ERROR",
			"status":     e.Code,
			"request_id": requestID,
		})
	}

	if e, ok := errx.As(err); ok {
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			logRequestError(c, err)
		}
		resp := fiber.Map{
			"error":      e.Message,
			"code":       e.Code,
			"type":       string(e.Type),
			"status":     e.HTTPStatus,
			"request_id": requestID,
		}
		if len(e.Details) > 0 {
			resp["details"] = e.Details
		}
		return c.Status(e.HTTPStatus).JSON(resp)
	}

	logRequestError(c, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"code":       "INTERNAL_ERROR",
		"type":       string(errx.TypeInternal),
		"status":     fiber.StatusInternalServerError,
		"request_id": requestID,
	})
}

func logRequestError(c *fiber.Ctx, err error) {
	logx.Component("http").WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	}).WithError(err).Error("request failed")
}

// normalizeIDs trims ids and drops blanks.
func normalizeIDs(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
