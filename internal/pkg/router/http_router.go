package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TrackFox/internal/pkg/constants"
	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
)

// HttpRouter serves the operational endpoints outside /api
type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	metrics.Register()
	app.Get(constants.MetricsRoute, metrics.Handler())
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
