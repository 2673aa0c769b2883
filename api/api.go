package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	logger        *slog.Logger
}

// NewAPIServer builds the fiber app. Errors that escape a handler go through
// the same envelope as handled ones.
func NewAPIServer(listenAddress string, bodyLimitMB int, logger *slog.Logger) *APIServer {
	app := fiber.New(fiber.Config{
		AppName:      "course-commerce-api",
		BodyLimit:    bodyLimitMB * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return response.Error(c, fe.Code, fe.Message, "HTTP_ERROR")
			}
			return response.FromError(c, logger, err)
		},
	})
	return &APIServer{app: app, listenAddress: listenAddress, logger: logger}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.logger.Info("starting API server", "address", s.listenAddress)
	return s.app.Listen(s.listenAddress)
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
