package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/newscollector/internal/collector/store"
	"github.com/mohammad-safakhou/newscollector/internal/collector/telemetry"
)

// Run starts the read-only HTTP API: health, metrics and access to saved
// collection files. It blocks until the listener fails.
func Run(addr string, collections *store.CollectionStore, tele *telemetry.Telemetry) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(os.Stdout, "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(tele.Registry(), promhttp.HandlerOpts{})))

	e.GET("/collections", func(c echo.Context) error {
		names, err := collections.List()
		if err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(200, map[string]interface{}{"collections": names})
	})

	e.GET("/collections/latest", func(c echo.Context) error {
		collection, name, err := collections.Latest()
		if err != nil {
			return err
		}
		if name == "" {
			return echo.NewHTTPError(http.StatusNotFound, "no collections saved yet")
		}
		return c.JSON(200, map[string]interface{}{"name": name, "topics": collection})
	})

	e.GET("/collections/:name", func(c echo.Context) error {
		name := c.Param("name")
		collection, err := collections.Load(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return echo.NewHTTPError(http.StatusNotFound, "collection not found")
			}
			return err
		}
		return c.JSON(200, map[string]interface{}{"name": name, "topics": collection})
	})

	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
