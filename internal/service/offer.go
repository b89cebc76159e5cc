package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
	"github.com/bookswap/bookswap-service/internal/repository"
)

// OfferService runs the trade negotiation protocol: an offer chain where only
// the head is active, counter-offers swap the two roles, and acceptance
// settles ownership for every book on both sides.
type OfferService struct {
	log    *zap.Logger
	repo   repository.OfferRepository
	books  repository.BookRepository
	users  repository.UserRepository
	events Publisher
}

func NewOfferService(repo repository.OfferRepository, books repository.BookRepository, users repository.UserRepository, events Publisher, log *zap.Logger) *OfferService {
	return &OfferService{
		log:    log.Named("offer"),
		repo:   repo,
		books:  books,
		users:  users,
		events: events,
	}
}

func (s *OfferService) CreateOffer(ctx context.Context, username string, req model.CreateOfferRequest) (model.Offer, error) {
	sender, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Offer{}, err
	}
	wanted, err := s.books.GetBookByUid(ctx, req.WantedBookUid)
	if err != nil {
		return model.Offer{}, err
	}
	ownership := wanted.Ownership()
	if ownership.Kind != model.OwnershipOwned {
		return model.Offer{}, errors.Wrap(errs.ErrNotOwned, "wanted book has no owner")
	}
	if ownership.OwnerID == sender.ID {
		return model.Offer{}, errs.ErrSelfOffer
	}
	if !wanted.IsTradable {
		return model.Offer{}, errors.Wrapf(errs.ErrNotTradable, "book %s", wanted.BookUid)
	}
	recipientID := ownership.OwnerID

	senderBooks, err := s.tradableBooksOf(ctx, req.SenderBookUids, sender.ID)
	if err != nil {
		return model.Offer{}, err
	}
	for _, uid := range req.RecipientBookUids {
		if uid == wanted.BookUid {
			return model.Offer{}, errors.Wrap(errs.ErrConflict, "wanted book is part of the offer already")
		}
	}
	extraBooks, err := s.tradableBooksOf(ctx, req.RecipientBookUids, recipientID)
	if err != nil {
		return model.Offer{}, err
	}

	notif := model.Notification{
		SenderID:    sender.ID,
		RecipientID: recipientID,
		BookID:      &wanted.ID,
		Type:        model.NotificationOffered,
		Message:     offerMessage(username, wanted, len(extraBooks)),
	}
	offer := model.Offer{SenderID: sender.ID, RecipientID: recipientID}
	created, err := s.repo.CreateOffer(ctx, offer, bookIDs(senderBooks), append(bookIDs(extraBooks), wanted.ID), notif)
	if err != nil {
		return model.Offer{}, err
	}
	s.events.Publish(notif)
	s.log.Info("offer created",
		zap.String("offer", created.OfferUid),
		zap.String("sender", created.Sender),
		zap.String("recipient", created.Recipient))
	return created, nil
}

// NegotiateOffer supersedes the thread head with a counter-offer whose roles
// are swapped: the old recipient proposes, the old sender answers. A
// counter-offer that merely mirrors the superseded sets changes nothing and
// is rejected.
func (s *OfferService) NegotiateOffer(ctx context.Context, username, offerUid string, req model.NegotiateOfferRequest) (model.Offer, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Offer{}, err
	}
	old, err := s.repo.GetOfferByUid(ctx, offerUid)
	if err != nil {
		return model.Offer{}, err
	}
	if user.ID != old.SenderID && user.ID != old.RecipientID {
		return model.Offer{}, errs.ErrNotAuthorized
	}
	if !old.IsActive {
		return model.Offer{}, errs.ErrStaleOffer
	}

	newSenderID, newRecipientID := old.RecipientID, old.SenderID
	if sameBookSet(req.SenderBookUids, old.RecipientBooks) && sameBookSet(req.RecipientBookUids, old.SenderBooks) {
		return model.Offer{}, errs.ErrNoChange
	}
	senderBooks, err := s.tradableBooksOf(ctx, req.SenderBookUids, newSenderID)
	if err != nil {
		return model.Offer{}, err
	}
	recipientBooks, err := s.tradableBooksOf(ctx, req.RecipientBookUids, newRecipientID)
	if err != nil {
		return model.Offer{}, err
	}

	counterpartID := newRecipientID
	if user.ID != newSenderID {
		counterpartID = newSenderID
	}
	notif := model.Notification{
		SenderID:    user.ID,
		RecipientID: counterpartID,
		Type:        model.NotificationCounterOffer,
		Message:     fmt.Sprintf("%s makes a counter-offer to your offer %s", username, old.OfferUid),
	}
	offer := model.Offer{SenderID: newSenderID, RecipientID: newRecipientID}
	created, err := s.repo.CreateCounterOffer(ctx, old.ID, offer, bookIDs(senderBooks), bookIDs(recipientBooks), notif)
	if err != nil {
		return model.Offer{}, err
	}
	s.events.Publish(notif)
	s.log.Info("offer negotiated",
		zap.String("old", old.OfferUid),
		zap.String("new", created.OfferUid))
	return created, nil
}

// AcceptOffer deactivates the offer first and only then checks that every
// book still sits with the party that put it on the table. Books that moved
// away since the proposal leave the offer permanently inactive without any
// exchange; otherwise all books on both sides go in flight towards their new
// owners.
func (s *OfferService) AcceptOffer(ctx context.Context, username, offerUid string) (model.AcceptOfferResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.AcceptOfferResult{}, err
	}
	offer, err := s.repo.GetOfferByUid(ctx, offerUid)
	if err != nil {
		return model.AcceptOfferResult{}, err
	}
	if user.ID != offer.RecipientID {
		return model.AcceptOfferResult{}, errs.ErrNotAuthorized
	}
	if !offer.IsActive {
		return model.AcceptOfferResult{}, errs.ErrStaleOffer
	}
	if err := s.repo.DeactivateOffer(ctx, offer.ID); err != nil {
		return model.AcceptOfferResult{}, err
	}

	missingSender := missingBooks(offer.SenderBooks, offer.SenderID)
	missingRecipient := missingBooks(offer.RecipientBooks, offer.RecipientID)
	if len(missingSender) > 0 || len(missingRecipient) > 0 {
		s.log.Info("offer went inactive on accept",
			zap.String("offer", offer.OfferUid),
			zap.Int("missingSender", len(missingSender)),
			zap.Int("missingRecipient", len(missingRecipient)))
		inactive, err := s.repo.GetOfferByUid(ctx, offerUid)
		if err != nil {
			return model.AcceptOfferResult{}, err
		}
		return model.AcceptOfferResult{
			Outcome:               model.OutcomeInactive,
			Offer:                 inactive,
			MissingSenderBooks:    missingSender,
			MissingRecipientBooks: missingRecipient,
		}, nil
	}

	transfers := make([]model.Transfer, 0, len(offer.SenderBooks)+len(offer.RecipientBooks))
	for _, b := range offer.SenderBooks {
		transfers = append(transfers, model.Transfer{BookID: b.ID, FromUserID: offer.SenderID, ToUserID: offer.RecipientID})
	}
	for _, b := range offer.RecipientBooks {
		transfers = append(transfers, model.Transfer{BookID: b.ID, FromUserID: offer.RecipientID, ToUserID: offer.SenderID})
	}
	notif := model.Notification{
		SenderID:    user.ID,
		RecipientID: offer.SenderID,
		Type:        model.NotificationDeal,
		Message:     fmt.Sprintf("%s accepted your offer %s!", username, offer.OfferUid),
		IsAnswered:  true,
	}
	if err := s.repo.SettleOffer(ctx, offer.ID, transfers, notif); err != nil {
		return model.AcceptOfferResult{}, err
	}
	s.events.Publish(notif)
	s.log.Info("offer settled", zap.String("offer", offer.OfferUid), zap.Int("transfers", len(transfers)))

	settled, err := s.repo.GetOfferByUid(ctx, offerUid)
	if err != nil {
		return model.AcceptOfferResult{}, err
	}
	return model.AcceptOfferResult{Outcome: model.OutcomeSettled, Offer: settled}, nil
}

func (s *OfferService) DeclineOffer(ctx context.Context, username, offerUid string) (model.Offer, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Offer{}, err
	}
	offer, err := s.repo.GetOfferByUid(ctx, offerUid)
	if err != nil {
		return model.Offer{}, err
	}
	if user.ID != offer.RecipientID {
		return model.Offer{}, errs.ErrNotAuthorized
	}
	if !offer.IsActive {
		return model.Offer{}, errs.ErrStaleOffer
	}
	notif := model.Notification{
		SenderID:    user.ID,
		RecipientID: offer.SenderID,
		Type:        model.NotificationDeclined,
		Message:     fmt.Sprintf("%s declined your offer %s!", username, offer.OfferUid),
		IsAnswered:  true,
	}
	if err := s.repo.DeclineOffer(ctx, offer.ID, notif); err != nil {
		return model.Offer{}, err
	}
	s.events.Publish(notif)
	s.log.Info("offer declined", zap.String("offer", offer.OfferUid))
	return s.repo.GetOfferByUid(ctx, offerUid)
}

func (s *OfferService) GetOffer(ctx context.Context, username, offerUid string) (model.Offer, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.Offer{}, err
	}
	offer, err := s.repo.GetOfferByUid(ctx, offerUid)
	if err != nil {
		return model.Offer{}, err
	}
	if user.ID != offer.SenderID && user.ID != offer.RecipientID {
		return model.Offer{}, errs.ErrNotAuthorized
	}
	return offer, nil
}

func (s *OfferService) ListOffers(ctx context.Context, username string, page, size int) (model.ListOffers, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ListOffers{}, err
	}
	return s.repo.ListOffersByUser(ctx, user.ID, page, size)
}

// tradableBooksOf resolves book uids and checks every one of them is owned by
// ownerID and open for trade.
func (s *OfferService) tradableBooksOf(ctx context.Context, bookUids []string, ownerID int) ([]model.Book, error) {
	books, err := s.books.GetBooksByUids(ctx, bookUids)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		if !b.OwnedBy(ownerID) {
			return nil, errors.Wrapf(errs.ErrNotOwned, "book %s", b.BookUid)
		}
		if !b.IsTradable {
			return nil, errors.Wrapf(errs.ErrNotTradable, "book %s", b.BookUid)
		}
	}
	return books, nil
}

func missingBooks(books []model.Book, expectedOwnerID int) []model.Book {
	var missing []model.Book
	for _, b := range books {
		if !b.OwnedBy(expectedOwnerID) {
			missing = append(missing, b)
		}
	}
	return missing
}

func sameBookSet(uids []string, books []model.Book) bool {
	if len(uids) != len(books) {
		return false
	}
	set := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	if len(set) != len(books) {
		return false
	}
	for _, b := range books {
		if _, ok := set[b.BookUid]; !ok {
			return false
		}
	}
	return true
}

func bookIDs(books []model.Book) []int {
	ids := make([]int, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	return ids
}

func offerMessage(sender string, wanted model.Book, extraCount int) string {
	msg := fmt.Sprintf("%s makes an offer for your book %q", sender, wanted.Title)
	if extraCount > 0 {
		msg += " and others"
	}
	return msg
}
