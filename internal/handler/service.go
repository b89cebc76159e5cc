package handler

import (
	"context"

	"github.com/bookswap/bookswap-service/internal/model"
	"github.com/bookswap/bookswap-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookService interface {
	CreateBook(ctx context.Context, username string, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, username, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	ToggleTradable(ctx context.Context, username, bookUid string) (model.Book, error)
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	ListBooks(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error)
	ListBooksByOwner(ctx context.Context, ownerUsername string, page, size int) (model.ListBooks, error)
	ListBooksOnTheWay(ctx context.Context, username string, page, size int) (model.ListBooks, error)
	ListBooksToSend(ctx context.Context, username string, page, size int) (model.ListBooks, error)
	ListExOwnedBooks(ctx context.Context, username string, page, size int) (model.ListBooks, error)
	ReceiveBook(ctx context.Context, username, bookUid string) (model.Book, error)
	RelinquishBook(ctx context.Context, username, bookUid string, req model.RelinquishBookRequest) (model.Book, error)
	AcceptRelinquish(ctx context.Context, username, notificationUid string) (model.Book, error)
	RejectRelinquish(ctx context.Context, username, notificationUid string) error
	ToggleLike(ctx context.Context, username, bookUid string) (model.Book, error)
}

type OfferService interface {
	CreateOffer(ctx context.Context, username string, req model.CreateOfferRequest) (model.Offer, error)
	NegotiateOffer(ctx context.Context, username, offerUid string, req model.NegotiateOfferRequest) (model.Offer, error)
	AcceptOffer(ctx context.Context, username, offerUid string) (model.AcceptOfferResult, error)
	DeclineOffer(ctx context.Context, username, offerUid string) (model.Offer, error)
	GetOffer(ctx context.Context, username, offerUid string) (model.Offer, error)
	ListOffers(ctx context.Context, username string, page, size int) (model.ListOffers, error)
}

type NotificationService interface {
	ListNotifications(ctx context.Context, username string, page, size int) (model.ListNotifications, error)
	UnreadCount(ctx context.Context, username string) (model.UnreadCount, error)
	GetNotification(ctx context.Context, username, notificationUid string) (model.Notification, error)
}

var (
	_ BookService         = (*service.BookService)(nil)
	_ OfferService        = (*service.OfferService)(nil)
	_ NotificationService = (*service.NotificationService)(nil)
)
