package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
	"github.com/bookswap/bookswap-service/internal/repository"
)

// BookService is the ownership ledger: who holds a book, who it is on the way
// to, who had it before, and who likes it.
type BookService struct {
	log    *zap.Logger
	repo   repository.BookRepository
	notifs repository.NotificationRepository
	users  repository.UserRepository
	events Publisher
}

func NewBookService(repo repository.BookRepository, notifs repository.NotificationRepository, users repository.UserRepository, events Publisher, log *zap.Logger) *BookService {
	return &BookService{
		log:    log.Named("book"),
		repo:   repo,
		notifs: notifs,
		users:  users,
		events: events,
	}
}

func (s *BookService) CreateBook(ctx context.Context, username string, req model.CreateBookRequest) (model.Book, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Book{}, err
	}
	return s.repo.CreateBook(ctx, user.ID, req)
}

func (s *BookService) UpdateBook(ctx context.Context, username, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	user, book, err := s.userAndBook(ctx, username, bookUid)
	if err != nil {
		return model.Book{}, err
	}
	if !book.OwnedBy(user.ID) {
		return model.Book{}, errs.ErrNotAuthorized
	}
	return s.repo.UpdateBook(ctx, book.ID, req)
}

// ToggleTradable flips whether the book may appear in offers.
func (s *BookService) ToggleTradable(ctx context.Context, username, bookUid string) (model.Book, error) {
	user, book, err := s.userAndBook(ctx, username, bookUid)
	if err != nil {
		return model.Book{}, err
	}
	if !book.OwnedBy(user.ID) {
		return model.Book{}, errs.ErrNotAuthorized
	}
	if err := s.repo.SetTradable(ctx, book.ID, !book.IsTradable); err != nil {
		return model.Book{}, err
	}
	return s.repo.GetBookByUid(ctx, bookUid)
}

func (s *BookService) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	return s.repo.GetBookByUid(ctx, bookUid)
}

func (s *BookService) ListBooks(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, req)
}

func (s *BookService) ListBooksByOwner(ctx context.Context, ownerUsername string, page, size int) (model.ListBooks, error) {
	owner, err := s.users.GetUserByUsername(ctx, ownerUsername)
	if err != nil {
		return model.ListBooks{}, err
	}
	return s.repo.ListBooksByRole(ctx, owner.ID, model.RoleOwner, page, size)
}

// ListBooksOnTheWay lists in-flight books awaiting the user's receipt.
func (s *BookService) ListBooksOnTheWay(ctx context.Context, username string, page, size int) (model.ListBooks, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ListBooks{}, err
	}
	return s.repo.ListBooksByRole(ctx, user.ID, model.RoleNextOwner, page, size)
}

// ListBooksToSend lists in-flight books the user still has to hand over.
func (s *BookService) ListBooksToSend(ctx context.Context, username string, page, size int) (model.ListBooks, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ListBooks{}, err
	}
	return s.repo.ListBooksByRole(ctx, user.ID, model.RolePreviousOwner, page, size)
}

func (s *BookService) ListExOwnedBooks(ctx context.Context, username string, page, size int) (model.ListBooks, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ListBooks{}, err
	}
	return s.repo.ListBooksByRole(ctx, user.ID, model.RoleExOwner, page, size)
}

// ReceiveBook finalizes the two-phase hand-over: only the designated next
// owner may confirm receipt.
func (s *BookService) ReceiveBook(ctx context.Context, username, bookUid string) (model.Book, error) {
	user, book, err := s.userAndBook(ctx, username, bookUid)
	if err != nil {
		return model.Book{}, err
	}
	ownership := book.Ownership()
	if ownership.Kind != model.OwnershipInFlight || ownership.ToID != user.ID {
		return model.Book{}, errs.ErrNotAuthorized
	}
	received, err := s.repo.ReceiveBook(ctx, book.ID, user.ID)
	if err != nil {
		return model.Book{}, err
	}
	s.log.Info("book received", zap.String("book", bookUid), zap.String("by", username))
	return received, nil
}

// RelinquishBook gives a book away outside of a trade. With a designated
// recipient the book goes in flight and the recipient is asked to accept or
// reject the hand-over; without one it is simply orphaned.
func (s *BookService) RelinquishBook(ctx context.Context, username, bookUid string, req model.RelinquishBookRequest) (model.Book, error) {
	user, book, err := s.userAndBook(ctx, username, bookUid)
	if err != nil {
		return model.Book{}, err
	}
	if !book.OwnedBy(user.ID) {
		return model.Book{}, errs.ErrNotAuthorized
	}

	var nextOwnerID *int
	var notif *model.Notification
	if req.ToUsername != nil && *req.ToUsername != "" {
		to, err := s.users.GetUserByUsername(ctx, *req.ToUsername)
		if err != nil {
			return model.Book{}, err
		}
		if to.ID == user.ID {
			return model.Book{}, errs.ErrSelfRecipient
		}
		nextOwnerID = &to.ID
		notif = &model.Notification{
			SenderID:    user.ID,
			RecipientID: to.ID,
			BookID:      &book.ID,
			Type:        model.NotificationChangeOwner,
			Message:     fmt.Sprintf("%s sent %q by %s to you", username, book.Title, book.Author),
		}
	}
	updated, err := s.repo.RelinquishBook(ctx, book.ID, user.ID, nextOwnerID, notif)
	if err != nil {
		return model.Book{}, err
	}
	if notif != nil {
		s.events.Publish(*notif)
	}
	s.log.Info("book relinquished", zap.String("book", bookUid), zap.Bool("handOver", nextOwnerID != nil))
	return updated, nil
}

// AcceptRelinquish answers a hand-over notification and confirms receipt.
func (s *BookService) AcceptRelinquish(ctx context.Context, username, notificationUid string) (model.Book, error) {
	user, notif, err := s.handOverNotification(ctx, username, notificationUid)
	if err != nil {
		return model.Book{}, err
	}
	if err := s.notifs.MarkAnswered(ctx, notif.ID); err != nil {
		return model.Book{}, err
	}
	return s.ReceiveBook(ctx, user.Username, *notif.BookUid)
}

// RejectRelinquish answers a hand-over notification without taking the book.
// The book stays ownerless.
func (s *BookService) RejectRelinquish(ctx context.Context, username, notificationUid string) error {
	_, notif, err := s.handOverNotification(ctx, username, notificationUid)
	if err != nil {
		return err
	}
	if err := s.notifs.MarkAnswered(ctx, notif.ID); err != nil {
		return err
	}
	s.log.Info("hand-over rejected", zap.String("notification", notificationUid))
	return nil
}

// ToggleLike flips like membership. The owner gets a pre-answered
// notification about each like and dislike; books without an owner are
// toggled silently.
func (s *BookService) ToggleLike(ctx context.Context, username, bookUid string) (model.Book, error) {
	user, book, err := s.userAndBook(ctx, username, bookUid)
	if err != nil {
		return model.Book{}, err
	}
	if book.OwnedBy(user.ID) {
		return model.Book{}, errs.ErrSelfLike
	}
	hasLike, err := s.repo.HasLike(ctx, book.ID, user.ID)
	if err != nil {
		return model.Book{}, err
	}
	like := !hasLike

	var notif *model.Notification
	if ownership := book.Ownership(); ownership.Kind == model.OwnershipOwned {
		typ, verb := model.NotificationLiked, "likes"
		if !like {
			typ, verb = model.NotificationDisliked, "does not like anymore"
		}
		notif = &model.Notification{
			SenderID:    user.ID,
			RecipientID: ownership.OwnerID,
			BookID:      &book.ID,
			Type:        typ,
			Message:     fmt.Sprintf("%s %s your book %q", username, verb, book.Title),
			IsAnswered:  true,
		}
	}
	if err := s.repo.SetLike(ctx, book.ID, user.ID, like, notif); err != nil {
		return model.Book{}, err
	}
	if notif != nil {
		s.events.Publish(*notif)
	}
	return s.repo.GetBookByUid(ctx, bookUid)
}

func (s *BookService) userAndBook(ctx context.Context, username, bookUid string) (model.User, model.Book, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, model.Book{}, err
	}
	book, err := s.repo.GetBookByUid(ctx, bookUid)
	if err != nil {
		return model.User{}, model.Book{}, err
	}
	return user, book, nil
}

// handOverNotification loads a CHANGE_OWNER notification addressed to the
// user that has not been answered yet.
func (s *BookService) handOverNotification(ctx context.Context, username, notificationUid string) (model.User, model.Notification, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, model.Notification{}, err
	}
	notif, err := s.notifs.GetNotificationByUid(ctx, notificationUid)
	if err != nil {
		return model.User{}, model.Notification{}, err
	}
	if notif.RecipientID != user.ID {
		return model.User{}, model.Notification{}, errs.ErrNotAuthorized
	}
	if notif.Type != model.NotificationChangeOwner || notif.BookUid == nil {
		return model.User{}, model.Notification{}, errs.ErrNotFound
	}
	if notif.IsAnswered {
		return model.User{}, model.Notification{}, errs.ErrAlreadyAnswered
	}
	return user, notif, nil
}
