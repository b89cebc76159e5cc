package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bookswap/bookswap-service/internal/model"
)

func paging(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	return page, size
}

func (h *Handler) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := paging(c)
	req := model.ListBooksRequest{
		Search:   c.QueryParam("search"),
		SearchBy: c.QueryParam("searchBy"),
		Page:     page,
		Size:     size,
	}
	books, err := h.bookSvc.ListBooks(ctx, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateBook(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.CreateBook(c.Request().Context(), userName, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) GetBook(c echo.Context) error {
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	book, err := h.bookSvc.GetBook(c.Request().Context(), bookUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.UpdateBook(c.Request().Context(), userName, bookUid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ToggleTradable(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	book, err := h.bookSvc.ToggleTradable(c.Request().Context(), userName, bookUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ToggleLike(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	book, err := h.bookSvc.ToggleLike(c.Request().Context(), userName, bookUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ReceiveBook(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	book, err := h.bookSvc.ReceiveBook(c.Request().Context(), userName, bookUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) RelinquishBook(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	var req model.RelinquishBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.RelinquishBook(c.Request().Context(), userName, bookUid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ListBooksByOwner(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	// An explicit owner query shows somebody else's shelf.
	if owner := c.QueryParam("owner"); owner != "" {
		userName = owner
	}
	page, size := paging(c)
	books, err := h.bookSvc.ListBooksByOwner(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) ListBooksOnTheWay(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	page, size := paging(c)
	books, err := h.bookSvc.ListBooksOnTheWay(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) ListBooksToSend(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	page, size := paging(c)
	books, err := h.bookSvc.ListBooksToSend(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) ListExOwnedBooks(c echo.Context) error {
	userName, err := getUserName(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	page, size := paging(c)
	books, err := h.bookSvc.ListExOwnedBooks(c.Request().Context(), userName, page, size)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}
