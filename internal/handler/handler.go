package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/pkg/validate"
)

type Handler struct {
	bookSvc         BookService
	offerSvc        OfferService
	notificationSvc NotificationService
	log             *zap.Logger
}

func New(bookSvc BookService, offerSvc OfferService, notificationSvc NotificationService, log *zap.Logger) *Handler {
	return &Handler{
		bookSvc:         bookSvc,
		offerSvc:        offerSvc,
		notificationSvc: notificationSvc,
		log:             log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig()),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
		userNameMiddleware,
	)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.CreateBook)
	api.GET("/books/dashboard", h.ListBooksByOwner)
	api.GET("/books/on-the-way", h.ListBooksOnTheWay)
	api.GET("/books/to-send", h.ListBooksToSend)
	api.GET("/books/ex-owned", h.ListExOwnedBooks)
	api.GET("/books/:bookUid", h.GetBook)
	api.PUT("/books/:bookUid", h.UpdateBook)
	api.POST("/books/:bookUid/tradable", h.ToggleTradable)
	api.POST("/books/:bookUid/like", h.ToggleLike)
	api.POST("/books/:bookUid/receive", h.ReceiveBook)
	api.POST("/books/:bookUid/relinquish", h.RelinquishBook)

	api.GET("/offers", h.ListOffers)
	api.POST("/offers", h.CreateOffer)
	api.GET("/offers/:offerUid", h.GetOffer)
	api.POST("/offers/:offerUid/negotiate", h.NegotiateOffer)
	api.POST("/offers/:offerUid/accept", h.AcceptOffer)
	api.POST("/offers/:offerUid/decline", h.DeclineOffer)

	api.GET("/notifications", h.ListNotifications)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.GET("/notifications/:notificationUid", h.GetNotification)
	api.POST("/notifications/:notificationUid/accept-book", h.AcceptRelinquish)
	api.POST("/notifications/:notificationUid/reject-book", h.RejectRelinquish)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps engine sentinels onto transport status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrNotAuthorized),
		errors.Is(err, errs.ErrSelfOffer),
		errors.Is(err, errs.ErrSelfLike),
		errors.Is(err, errs.ErrStaleOffer):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrNoChange),
		errors.Is(err, errs.ErrNotTradable),
		errors.Is(err, errs.ErrNotOwned),
		errors.Is(err, errs.ErrSelfRecipient),
		errors.Is(err, errs.ErrAlreadyAnswered):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
