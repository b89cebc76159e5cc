package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/pkg/logger"
)

const (
	// XUserNameHeader carries the authenticated username resolved by the
	// auth layer in front of this service.
	XUserNameHeader = "X-User-Name"

	userNameKey = "userNameKey"
)

func userNameMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userName := c.Request().Header.Get(XUserNameHeader)
		if userName == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUserName.Error())
		}
		c.Set(userNameKey, userName)
		return next(c)
	}
}

func getUserName(c echo.Context) (string, error) {
	username, ok := c.Get(userNameKey).(string)
	if !ok || username == "" {
		return "", errs.ErrUserName
	}
	return username, nil
}

func newRateLimiterMW(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func requestLoggerConfig() middleware.RequestLoggerConfig {
	cfg := logger.Log{LogLevel: zapcore.DebugLevel, Sink: ""}
	log := logger.NewLogger(cfg, "echo")
	c := middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
	return c
}
