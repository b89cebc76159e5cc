package service_test

import (
	"context"
	"sync"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
)

type userRepoStub struct {
	users map[string]model.User
}

func (s *userRepoStub) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := s.users[username]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

type bookRepoStub struct {
	createBook      func(ctx context.Context, ownerID int, req model.CreateBookRequest) (model.Book, error)
	updateBook      func(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.Book, error)
	setTradable     func(ctx context.Context, bookID int, tradable bool) error
	getBookByUid    func(ctx context.Context, bookUid string) (model.Book, error)
	getBooksByUids  func(ctx context.Context, bookUids []string) ([]model.Book, error)
	listBooks       func(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error)
	listBooksByRole func(ctx context.Context, userID int, role model.BookRole, page, size int) (model.ListBooks, error)
	receiveBook     func(ctx context.Context, bookID, userID int) (model.Book, error)
	relinquishBook  func(ctx context.Context, bookID, ownerID int, nextOwnerID *int, notif *model.Notification) (model.Book, error)
	hasLike         func(ctx context.Context, bookID, userID int) (bool, error)
	setLike         func(ctx context.Context, bookID, userID int, like bool, notif *model.Notification) error
}

func (s *bookRepoStub) CreateBook(ctx context.Context, ownerID int, req model.CreateBookRequest) (model.Book, error) {
	return s.createBook(ctx, ownerID, req)
}

func (s *bookRepoStub) UpdateBook(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.Book, error) {
	return s.updateBook(ctx, bookID, req)
}

func (s *bookRepoStub) SetTradable(ctx context.Context, bookID int, tradable bool) error {
	return s.setTradable(ctx, bookID, tradable)
}

func (s *bookRepoStub) GetBookByUid(ctx context.Context, bookUid string) (model.Book, error) {
	return s.getBookByUid(ctx, bookUid)
}

func (s *bookRepoStub) GetBooksByUids(ctx context.Context, bookUids []string) ([]model.Book, error) {
	return s.getBooksByUids(ctx, bookUids)
}

func (s *bookRepoStub) ListBooks(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error) {
	return s.listBooks(ctx, req)
}

func (s *bookRepoStub) ListBooksByRole(ctx context.Context, userID int, role model.BookRole, page, size int) (model.ListBooks, error) {
	return s.listBooksByRole(ctx, userID, role, page, size)
}

func (s *bookRepoStub) ReceiveBook(ctx context.Context, bookID, userID int) (model.Book, error) {
	return s.receiveBook(ctx, bookID, userID)
}

func (s *bookRepoStub) RelinquishBook(ctx context.Context, bookID, ownerID int, nextOwnerID *int, notif *model.Notification) (model.Book, error) {
	return s.relinquishBook(ctx, bookID, ownerID, nextOwnerID, notif)
}

func (s *bookRepoStub) HasLike(ctx context.Context, bookID, userID int) (bool, error) {
	return s.hasLike(ctx, bookID, userID)
}

func (s *bookRepoStub) SetLike(ctx context.Context, bookID, userID int, like bool, notif *model.Notification) error {
	return s.setLike(ctx, bookID, userID, like, notif)
}

type offerRepoStub struct {
	getOfferByUid      func(ctx context.Context, offerUid string) (model.Offer, error)
	listOffersByUser   func(ctx context.Context, userID int, page, size int) (model.ListOffers, error)
	createOffer        func(ctx context.Context, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error)
	createCounterOffer func(ctx context.Context, oldOfferID int, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error)
	deactivateOffer    func(ctx context.Context, offerID int) error
	settleOffer        func(ctx context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error
	declineOffer       func(ctx context.Context, offerID int, notif model.Notification) error
}

func (s *offerRepoStub) GetOfferByUid(ctx context.Context, offerUid string) (model.Offer, error) {
	return s.getOfferByUid(ctx, offerUid)
}

func (s *offerRepoStub) ListOffersByUser(ctx context.Context, userID int, page, size int) (model.ListOffers, error) {
	return s.listOffersByUser(ctx, userID, page, size)
}

func (s *offerRepoStub) CreateOffer(ctx context.Context, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
	return s.createOffer(ctx, offer, senderBookIDs, recipientBookIDs, notif)
}

func (s *offerRepoStub) CreateCounterOffer(ctx context.Context, oldOfferID int, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
	return s.createCounterOffer(ctx, oldOfferID, offer, senderBookIDs, recipientBookIDs, notif)
}

func (s *offerRepoStub) DeactivateOffer(ctx context.Context, offerID int) error {
	return s.deactivateOffer(ctx, offerID)
}

func (s *offerRepoStub) SettleOffer(ctx context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error {
	return s.settleOffer(ctx, offerID, transfers, notif)
}

func (s *offerRepoStub) DeclineOffer(ctx context.Context, offerID int, notif model.Notification) error {
	return s.declineOffer(ctx, offerID, notif)
}

type notificationRepoStub struct {
	getNotificationByUid func(ctx context.Context, notificationUid string) (model.Notification, error)
	listNotifications    func(ctx context.Context, recipientID int, page, size int) (model.ListNotifications, error)
	unreadCount          func(ctx context.Context, recipientID int) (int, error)
	markRead             func(ctx context.Context, notificationID int) error
	markAnswered         func(ctx context.Context, notificationID int) error
}

func (s *notificationRepoStub) GetNotificationByUid(ctx context.Context, notificationUid string) (model.Notification, error) {
	return s.getNotificationByUid(ctx, notificationUid)
}

func (s *notificationRepoStub) ListNotifications(ctx context.Context, recipientID int, page, size int) (model.ListNotifications, error) {
	return s.listNotifications(ctx, recipientID, page, size)
}

func (s *notificationRepoStub) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	return s.unreadCount(ctx, recipientID)
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, notificationID int) error {
	return s.markRead(ctx, notificationID)
}

func (s *notificationRepoStub) MarkAnswered(ctx context.Context, notificationID int) error {
	return s.markAnswered(ctx, notificationID)
}

// publisherStub records published notifications.
type publisherStub struct {
	mu        sync.Mutex
	published []model.Notification
}

func (p *publisherStub) Publish(n model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
