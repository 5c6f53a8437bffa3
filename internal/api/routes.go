package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/rfq-checker/internal/store"
)

// SinkHealth reports the connection state of each event sink. Satisfied by *publisher.Publisher.
type SinkHealth interface {
	HealthCheck(ctx context.Context) map[string]error
}

func RegisterRoutes(app *fiber.App, st store.Store, sinks SinkHealth, runsHandler *RunsHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		if sinks != nil {
			for name, err := range sinks.HealthCheck(healthCtx) {
				checks[name] = "ok"
				if err != nil {
					checks[name] = err.Error()
					status = "degraded"
					code = fiber.StatusServiceUnavailable
				}
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/runs", runsHandler.ListLatest)
	v1.Get("/runs/:profile", runsHandler.History)
	v1.Post("/runs/:profile", runsHandler.Trigger)
}
