package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookswap/bookswap-service/internal/model"
)

func (h *Handler) CreateOffer(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.CreateOfferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	offer, err := h.offerSvc.CreateOffer(c.Request().Context(), userName, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, offer)
}

func (h *Handler) NegotiateOffer(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	offerUid := c.Param("offerUid")
	if offerUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "offerUid is empty")
	}
	var req model.NegotiateOfferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	offer, err := h.offerSvc.NegotiateOffer(c.Request().Context(), userName, offerUid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, offer)
}

func (h *Handler) AcceptOffer(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	offerUid := c.Param("offerUid")
	if offerUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "offerUid is empty")
	}
	result, err := h.offerSvc.AcceptOffer(c.Request().Context(), userName, offerUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) DeclineOffer(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	offerUid := c.Param("offerUid")
	if offerUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "offerUid is empty")
	}
	offer, err := h.offerSvc.DeclineOffer(c.Request().Context(), userName, offerUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, offer)
}

func (h *Handler) GetOffer(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	offerUid := c.Param("offerUid")
	if offerUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "offerUid is empty")
	}
	offer, err := h.offerSvc.GetOffer(c.Request().Context(), userName, offerUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, offer)
}

func (h *Handler) ListOffers(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	page, size := paging(c)
	offers, err := h.offerSvc.ListOffers(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, offers)
}
