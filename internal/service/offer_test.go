package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
	"github.com/bookswap/bookswap-service/internal/service"
)

const (
	aliceID = 1
	bobID   = 2
	eveID   = 3
)

func testUsers() *userRepoStub {
	return &userRepoStub{users: map[string]model.User{
		"alice": {ID: aliceID, Username: "alice"},
		"bob":   {ID: bobID, Username: "bob"},
		"eve":   {ID: eveID, Username: "eve"},
	}}
}

func ownedBook(id int, uid string, ownerID int, tradable bool) model.Book {
	return model.Book{ID: id, BookUid: uid, Title: "book-" + uid, IsTradable: tradable, OwnerID: intPtr(ownerID)}
}

func booksByUid(books ...model.Book) func(ctx context.Context, uids []string) ([]model.Book, error) {
	index := make(map[string]model.Book, len(books))
	for _, b := range books {
		index[b.BookUid] = b
	}
	return func(_ context.Context, uids []string) ([]model.Book, error) {
		out := make([]model.Book, 0, len(uids))
		for _, uid := range uids {
			b, ok := index[uid]
			if !ok {
				return nil, errs.ErrNotFound
			}
			out = append(out, b)
		}
		return out, nil
	}
}

func TestOfferService_CreateOffer(t *testing.T) {
	t.Parallel()

	wanted := ownedBook(10, "b9df3de0-79a8-4463-ae64-bbb2e2d7dfc1", bobID, true)
	mine := ownedBook(11, "5e2cb5f0-9f1e-4c68-ae39-32dbcc1e6bf7", aliceID, true)
	extra := ownedBook(12, "93b6a910-9b5e-4bdb-a7aa-4e1fe2dd74b4", bobID, true)

	t.Run("ok with extra recipient book", func(t *testing.T) {
		t.Parallel()
		events := &publisherStub{}
		var gotSender, gotRecipient []int
		var gotNotif model.Notification
		repo := &offerRepoStub{
			createOffer: func(_ context.Context, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
				gotSender, gotRecipient, gotNotif = senderBookIDs, recipientBookIDs, notif
				offer.ID = 100
				offer.OfferUid = "offer-uid"
				offer.IsActive = true
				return offer, nil
			},
		}
		books := &bookRepoStub{
			getBookByUid:   func(_ context.Context, uid string) (model.Book, error) { return wanted, nil },
			getBooksByUids: booksByUid(mine, extra),
		}
		svc := service.NewOfferService(repo, books, testUsers(), events, zap.NewNop())

		created, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
			WantedBookUid:     wanted.BookUid,
			SenderBookUids:    []string{mine.BookUid},
			RecipientBookUids: []string{extra.BookUid},
		})
		require.NoError(t, err)
		require.True(t, created.IsActive)
		require.Equal(t, aliceID, created.SenderID)
		require.Equal(t, bobID, created.RecipientID)
		require.Equal(t, []int{mine.ID}, gotSender)
		require.Equal(t, []int{extra.ID, wanted.ID}, gotRecipient)
		require.Equal(t, model.NotificationOffered, gotNotif.Type)
		require.Equal(t, bobID, gotNotif.RecipientID)
		require.Contains(t, gotNotif.Message, "and others")
		require.Len(t, events.published, 1)
	})

	t.Run("own book is rejected", func(t *testing.T) {
		t.Parallel()
		ownWanted := ownedBook(10, wanted.BookUid, aliceID, true)
		books := &bookRepoStub{
			getBookByUid: func(_ context.Context, uid string) (model.Book, error) { return ownWanted, nil },
		}
		svc := service.NewOfferService(&offerRepoStub{}, books, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
			WantedBookUid:  ownWanted.BookUid,
			SenderBookUids: []string{mine.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrSelfOffer)
	})

	t.Run("non-tradable wanted book", func(t *testing.T) {
		t.Parallel()
		closed := ownedBook(10, wanted.BookUid, bobID, false)
		books := &bookRepoStub{
			getBookByUid: func(_ context.Context, uid string) (model.Book, error) { return closed, nil },
		}
		svc := service.NewOfferService(&offerRepoStub{}, books, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
			WantedBookUid:  closed.BookUid,
			SenderBookUids: []string{mine.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrNotTradable)
	})

	t.Run("in-flight wanted book", func(t *testing.T) {
		t.Parallel()
		inFlight := model.Book{ID: 10, BookUid: wanted.BookUid, IsTradable: true,
			PreviousOwnerID: intPtr(bobID), NextOwnerID: intPtr(eveID)}
		books := &bookRepoStub{
			getBookByUid: func(_ context.Context, uid string) (model.Book, error) { return inFlight, nil },
		}
		svc := service.NewOfferService(&offerRepoStub{}, books, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
			WantedBookUid:  inFlight.BookUid,
			SenderBookUids: []string{mine.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrNotOwned)
	})

	t.Run("wanted book listed as extra", func(t *testing.T) {
		t.Parallel()
		books := &bookRepoStub{
			getBookByUid:   func(_ context.Context, uid string) (model.Book, error) { return wanted, nil },
			getBooksByUids: booksByUid(mine),
		}
		svc := service.NewOfferService(&offerRepoStub{}, books, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
			WantedBookUid:     wanted.BookUid,
			SenderBookUids:    []string{mine.BookUid},
			RecipientBookUids: []string{wanted.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrConflict)
	})
}

func TestOfferService_NegotiateOffer(t *testing.T) {
	t.Parallel()

	aliceBook := ownedBook(11, "5e2cb5f0-9f1e-4c68-ae39-32dbcc1e6bf7", aliceID, true)
	bobBook := ownedBook(10, "b9df3de0-79a8-4463-ae64-bbb2e2d7dfc1", bobID, true)
	bobBook2 := ownedBook(12, "93b6a910-9b5e-4bdb-a7aa-4e1fe2dd74b4", bobID, true)

	head := model.Offer{
		ID: 100, OfferUid: "offer-uid", SenderID: aliceID, RecipientID: bobID, IsActive: true,
		SenderBooks:    []model.Book{aliceBook},
		RecipientBooks: []model.Book{bobBook},
	}

	t.Run("roles swap and predecessor is superseded", func(t *testing.T) {
		t.Parallel()
		events := &publisherStub{}
		var gotOldID int
		var gotOffer model.Offer
		var gotNotif model.Notification
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return head, nil },
			createCounterOffer: func(_ context.Context, oldOfferID int, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
				gotOldID, gotOffer, gotNotif = oldOfferID, offer, notif
				offer.ID = 101
				offer.OfferUid = "counter-uid"
				offer.IsActive = true
				return offer, nil
			},
		}
		books := &bookRepoStub{getBooksByUids: booksByUid(aliceBook, bobBook, bobBook2)}
		svc := service.NewOfferService(repo, books, testUsers(), events, zap.NewNop())

		created, err := svc.NegotiateOffer(context.Background(), "bob", head.OfferUid, model.NegotiateOfferRequest{
			SenderBookUids:    []string{bobBook.BookUid, bobBook2.BookUid},
			RecipientBookUids: []string{aliceBook.BookUid},
		})
		require.NoError(t, err)
		require.Equal(t, head.ID, gotOldID)
		require.Equal(t, bobID, gotOffer.SenderID)
		require.Equal(t, aliceID, gotOffer.RecipientID)
		require.Equal(t, model.NotificationCounterOffer, gotNotif.Type)
		require.Equal(t, aliceID, gotNotif.RecipientID)
		require.Equal(t, "counter-uid", created.OfferUid)
		require.Len(t, events.published, 1)
	})

	t.Run("mirrored sets change nothing", func(t *testing.T) {
		t.Parallel()
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return head, nil },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.NegotiateOffer(context.Background(), "bob", head.OfferUid, model.NegotiateOfferRequest{
			SenderBookUids:    []string{bobBook.BookUid},
			RecipientBookUids: []string{aliceBook.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrNoChange)
	})

	t.Run("third party may not negotiate", func(t *testing.T) {
		t.Parallel()
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return head, nil },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.NegotiateOffer(context.Background(), "eve", head.OfferUid, model.NegotiateOfferRequest{
			SenderBookUids:    []string{bobBook.BookUid},
			RecipientBookUids: []string{aliceBook.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrNotAuthorized)
	})

	t.Run("superseded offer is frozen", func(t *testing.T) {
		t.Parallel()
		stale := head
		stale.IsActive = false
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return stale, nil },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.NegotiateOffer(context.Background(), "bob", head.OfferUid, model.NegotiateOfferRequest{
			SenderBookUids:    []string{bobBook2.BookUid},
			RecipientBookUids: []string{aliceBook.BookUid},
		})
		require.ErrorIs(t, err, errs.ErrStaleOffer)
	})
}

func TestOfferService_AcceptOffer(t *testing.T) {
	t.Parallel()

	aliceBook := ownedBook(11, "5e2cb5f0-9f1e-4c68-ae39-32dbcc1e6bf7", aliceID, true)
	bobBook := ownedBook(10, "b9df3de0-79a8-4463-ae64-bbb2e2d7dfc1", bobID, true)

	offer := model.Offer{
		ID: 100, OfferUid: "offer-uid", SenderID: aliceID, RecipientID: bobID, IsActive: true,
		SenderBooks:    []model.Book{aliceBook},
		RecipientBooks: []model.Book{bobBook},
	}

	t.Run("settles transfers in both directions", func(t *testing.T) {
		t.Parallel()
		events := &publisherStub{}
		deactivated := false
		var gotTransfers []model.Transfer
		var gotNotif model.Notification
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) {
				if deactivated {
					settled := offer
					settled.IsActive = false
					settled.IsAccept = true
					return settled, nil
				}
				return offer, nil
			},
			deactivateOffer: func(_ context.Context, offerID int) error {
				require.Equal(t, offer.ID, offerID)
				deactivated = true
				return nil
			},
			settleOffer: func(_ context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error {
				gotTransfers, gotNotif = transfers, notif
				return nil
			},
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), events, zap.NewNop())

		res, err := svc.AcceptOffer(context.Background(), "bob", offer.OfferUid)
		require.NoError(t, err)
		require.Equal(t, model.OutcomeSettled, res.Outcome)
		require.True(t, res.Offer.IsAccept)
		require.False(t, res.Offer.IsActive)
		require.Equal(t, []model.Transfer{
			{BookID: aliceBook.ID, FromUserID: aliceID, ToUserID: bobID},
			{BookID: bobBook.ID, FromUserID: bobID, ToUserID: aliceID},
		}, gotTransfers)
		require.Equal(t, model.NotificationDeal, gotNotif.Type)
		require.True(t, gotNotif.IsAnswered)
		require.Len(t, events.published, 1)
	})

	t.Run("moved book leaves the offer inactive without exchange", func(t *testing.T) {
		t.Parallel()
		movedAway := aliceBook
		movedAway.OwnerID = intPtr(eveID)
		gone := offer
		gone.SenderBooks = []model.Book{movedAway}

		events := &publisherStub{}
		deactivated := false
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) {
				if deactivated {
					inactive := gone
					inactive.IsActive = false
					return inactive, nil
				}
				return gone, nil
			},
			deactivateOffer: func(_ context.Context, offerID int) error {
				deactivated = true
				return nil
			},
			settleOffer: func(_ context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error {
				t.Fatal("no settlement expected")
				return nil
			},
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), events, zap.NewNop())

		res, err := svc.AcceptOffer(context.Background(), "bob", offer.OfferUid)
		require.NoError(t, err)
		require.Equal(t, model.OutcomeInactive, res.Outcome)
		require.False(t, res.Offer.IsActive)
		require.False(t, res.Offer.IsAccept)
		require.Len(t, res.MissingSenderBooks, 1)
		require.Equal(t, movedAway.BookUid, res.MissingSenderBooks[0].BookUid)
		require.Empty(t, res.MissingRecipientBooks)
		require.True(t, deactivated, "offer must be deactivated even when the trade falls through")
		require.Empty(t, events.published)
	})

	t.Run("only the recipient may accept", func(t *testing.T) {
		t.Parallel()
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return offer, nil },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.AcceptOffer(context.Background(), "alice", offer.OfferUid)
		require.ErrorIs(t, err, errs.ErrNotAuthorized)
	})

	t.Run("second accept races the guarded deactivation", func(t *testing.T) {
		t.Parallel()
		repo := &offerRepoStub{
			getOfferByUid:   func(_ context.Context, uid string) (model.Offer, error) { return offer, nil },
			deactivateOffer: func(_ context.Context, offerID int) error { return errs.ErrStaleOffer },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.AcceptOffer(context.Background(), "bob", offer.OfferUid)
		require.ErrorIs(t, err, errs.ErrStaleOffer)
	})
}

func TestOfferService_DeclineOffer(t *testing.T) {
	t.Parallel()

	offer := model.Offer{ID: 100, OfferUid: "offer-uid", SenderID: aliceID, RecipientID: bobID, IsActive: true}

	t.Run("recipient declines with answered notification", func(t *testing.T) {
		t.Parallel()
		events := &publisherStub{}
		var gotNotif model.Notification
		declined := false
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) {
				if declined {
					inactive := offer
					inactive.IsActive = false
					return inactive, nil
				}
				return offer, nil
			},
			declineOffer: func(_ context.Context, offerID int, notif model.Notification) error {
				gotNotif = notif
				declined = true
				return nil
			},
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), events, zap.NewNop())

		out, err := svc.DeclineOffer(context.Background(), "bob", offer.OfferUid)
		require.NoError(t, err)
		require.False(t, out.IsActive)
		require.Equal(t, model.NotificationDeclined, gotNotif.Type)
		require.Equal(t, aliceID, gotNotif.RecipientID)
		require.True(t, gotNotif.IsAnswered)
		require.Len(t, events.published, 1)
	})

	t.Run("sender may not decline", func(t *testing.T) {
		t.Parallel()
		repo := &offerRepoStub{
			getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) { return offer, nil },
		}
		svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

		_, err := svc.DeclineOffer(context.Background(), "alice", offer.OfferUid)
		require.ErrorIs(t, err, errs.ErrNotAuthorized)
	})
}

func TestOfferService_GetOffer(t *testing.T) {
	t.Parallel()

	offer := model.Offer{ID: 100, OfferUid: "offer-uid", SenderID: aliceID, RecipientID: bobID, IsActive: true}
	repo := &offerRepoStub{
		getOfferByUid: func(_ context.Context, uid string) (model.Offer, error) {
			if uid != offer.OfferUid {
				return model.Offer{}, errs.ErrNotFound
			}
			return offer, nil
		},
	}
	svc := service.NewOfferService(repo, &bookRepoStub{}, testUsers(), &publisherStub{}, zap.NewNop())

	_, err := svc.GetOffer(context.Background(), "alice", offer.OfferUid)
	require.NoError(t, err)

	_, err = svc.GetOffer(context.Background(), "eve", offer.OfferUid)
	require.ErrorIs(t, err, errs.ErrNotAuthorized)

	_, err = svc.GetOffer(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestOfferService_CreateOffer_untradableSenderBook(t *testing.T) {
	t.Parallel()

	wanted := ownedBook(10, "b9df3de0-79a8-4463-ae64-bbb2e2d7dfc1", bobID, true)
	closed := ownedBook(11, "5e2cb5f0-9f1e-4c68-ae39-32dbcc1e6bf7", aliceID, false)

	books := &bookRepoStub{
		getBookByUid:   func(_ context.Context, uid string) (model.Book, error) { return wanted, nil },
		getBooksByUids: booksByUid(closed),
	}
	svc := service.NewOfferService(&offerRepoStub{}, books, testUsers(), &publisherStub{}, zap.NewNop())

	_, err := svc.CreateOffer(context.Background(), "alice", model.CreateOfferRequest{
		WantedBookUid:  wanted.BookUid,
		SenderBookUids: []string{closed.BookUid},
	})
	require.ErrorIs(t, err, errs.ErrNotTradable)
}
