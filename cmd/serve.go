package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/monitor"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run workers, scheduled scans, health alerts and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logx.Info("🚀 Starting drug content service...")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := NewContainer(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Cleanup()

			g, gctx := errgroup.WithContext(ctx)

			// 1. Workers
			g.Go(func() error { return c.Jobs.Start(gctx) })

			// 2. Scheduled scans
			if cfg.Scanner.Enabled {
				sch, err := scanner.NewScheduler(c.Scanner, scanner.ScheduleConfig{
					Missing:  cfg.Scanner.MissingSchedule,
					Outdated: cfg.Scanner.OutdatedSchedule,
				})
				if err != nil {
					return err
				}
				g.Go(func() error { return sch.Run(gctx) })
				logx.Infof("  ✅ Scans scheduled (next: %v)", sch.Next())
			}

			// 3. Health alerts
			if len(cfg.Monitor.AlertTo) > 0 {
				alerter, err := monitor.NewAlerter(c.Monitor, c.Mail, monitor.AlertOptions{
					To:            cfg.Monitor.AlertTo,
					CheckInterval: cfg.Monitor.CheckInterval,
					Interval:      cfg.Monitor.AlertInterval,
				})
				if err != nil {
					return err
				}
				g.Go(func() error { return alerter.Run(gctx) })
				logx.Infof("  ✅ Health alerts to %v", cfg.Monitor.AlertTo)
			}

			// 4. Admin API
			app := newApp(c)
			addr := fmt.Sprintf(":%d", cfg.HTTPPort)
			g.Go(func() error {
				logx.Infof("🌐 Admin API listening on %s", addr)
				return app.Listen(addr)
			})
			g.Go(func() error {
				<-gctx.Done()
				logx.Info("🛑 Shutting down gracefully...")
				return app.ShutdownWithTimeout(30 * time.Second)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			logx.Info("✅ Service exited")
			return nil
		},
	}
}

func newApp(c *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "drugcontent",
		DisableStartupMessage: true,
		ErrorHandler:          monitor.ErrorHandler,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Get("/health", healthCheckHandler(c))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	monitor.NewHandlers(c.Monitor).RegisterRoutes(app)

	app.Use(notFoundHandler)
	return app
}

// healthCheckHandler reports the database and the queues. Queue issues
// degrade the status but the process itself is still serving.
func healthCheckHandler(c *Container) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy", "service": "drugcontent"}
		status := fiber.StatusOK

		if err := c.DB.PingContext(ctx.UserContext()); err != nil {
			health["db"] = "unhealthy"
			health["db_error"] = err.Error()
			health["status"] = "unhealthy"
			status = fiber.StatusServiceUnavailable
		} else {
			health["db"] = "healthy"
		}

		queues := c.Monitor.Health(ctx.UserContext())
		health["queues"] = queues
		if !queues.Healthy && status == fiber.StatusOK {
			health["status"] = "degraded"
		}
		return ctx.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	})
}
