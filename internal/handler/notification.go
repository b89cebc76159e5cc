package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) ListNotifications(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	page, size := paging(c)
	notifications, err := h.notificationSvc.ListNotifications(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	count, err := h.notificationSvc.UnreadCount(c.Request().Context(), userName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, count)
}

func (h *Handler) GetNotification(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	notificationUid := c.Param("notificationUid")
	if notificationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notificationUid is empty")
	}
	notification, err := h.notificationSvc.GetNotification(c.Request().Context(), userName, notificationUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notification)
}

func (h *Handler) AcceptRelinquish(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	notificationUid := c.Param("notificationUid")
	if notificationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notificationUid is empty")
	}
	book, err := h.bookSvc.AcceptRelinquish(c.Request().Context(), userName, notificationUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) RejectRelinquish(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	notificationUid := c.Param("notificationUid")
	if notificationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notificationUid is empty")
	}
	if err := h.bookSvc.RejectRelinquish(c.Request().Context(), userName, notificationUid); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}
