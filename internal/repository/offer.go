package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
)

func offerSelect() sq.SelectBuilder {
	return qb.Select(
		"o.id", "o.offer_uid", "o.sender_id", "o.recipient_id", "o.is_active", "o.is_accept",
		"o.previous_offer_id", "po.offer_uid as previous_offer_uid", "o.received_date",
		"s.username as sender", "r.username as recipient",
	).From(offersTableName + " o").
		Join(usersTableName + " s on s.id = o.sender_id").
		Join(usersTableName + " r on r.id = o.recipient_id").
		LeftJoin(offersTableName + " po on po.id = o.previous_offer_id")
}

func getOffer(ctx context.Context, q sqlx.ExtContext, pred interface{}, args ...interface{}) (model.Offer, error) {
	query, qargs, err := offerSelect().Where(pred, args...).Limit(1).ToSql()
	if err != nil {
		return model.Offer{}, err
	}
	var offer model.Offer
	if err := sqlx.GetContext(ctx, q, &offer, query, qargs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Offer{}, errs.ErrNotFound
		}
		return model.Offer{}, err
	}
	if offer.SenderBooks, err = offerBooks(ctx, q, offerSenderBooksTableName, offer.ID); err != nil {
		return model.Offer{}, err
	}
	if offer.RecipientBooks, err = offerBooks(ctx, q, offerRecipientBooksTableName, offer.ID); err != nil {
		return model.Offer{}, err
	}
	return offer, nil
}

func offerBooks(ctx context.Context, q sqlx.ExtContext, joinTable string, offerID int) ([]model.Book, error) {
	query, args, err := bookSelect().
		Join(joinTable + " ob on ob.book_id = b.id").
		Where(sq.Eq{"ob.offer_id": offerID}).
		OrderBy("b.title").
		ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := sqlx.SelectContext(ctx, q, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func insertOfferBooks(ctx context.Context, tx *sqlx.Tx, joinTable string, offerID int, bookIDs []int) error {
	if len(bookIDs) == 0 {
		return nil
	}
	ins := qb.Insert(joinTable).Columns("offer_id", "book_id")
	for _, bookID := range bookIDs {
		ins = ins.Values(offerID, bookID)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func insertOffer(ctx context.Context, tx *sqlx.Tx, offer model.Offer, senderBookIDs, recipientBookIDs []int) (int, error) {
	query, args, err := qb.Insert(offersTableName).
		Columns("offer_uid", "sender_id", "recipient_id", "previous_offer_id").
		Values(uuid.New(), offer.SenderID, offer.RecipientID, offer.PreviousOfferID).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int
	if err := sqlx.GetContext(ctx, tx, &id, query, args...); err != nil {
		return 0, err
	}
	if err := insertOfferBooks(ctx, tx, offerSenderBooksTableName, id, senderBookIDs); err != nil {
		return 0, err
	}
	if err := insertOfferBooks(ctx, tx, offerRecipientBooksTableName, id, recipientBookIDs); err != nil {
		return 0, err
	}
	return id, nil
}

func deactivateOffer(ctx context.Context, tx sqlx.ExtContext, offerID int) error {
	res, err := tx.ExecContext(ctx,
		`update offers set is_active = false where id = $1 and is_active = true`, offerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrStaleOffer
	}
	return nil
}

func (r *repository) GetOfferByUid(ctx context.Context, offerUid string) (model.Offer, error) {
	return getOffer(ctx, r.db, sq.Eq{"o.offer_uid": offerUid})
}

func (r *repository) ListOffersByUser(ctx context.Context, userID int, page, size int) (model.ListOffers, error) {
	q := offerSelect().
		Where(sq.Or{sq.Eq{"o.sender_id": userID}, sq.Eq{"o.recipient_id": userID}}).
		OrderBy("o.received_date desc")
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.ListOffers{}, err
	}
	var offers []model.Offer
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return model.ListOffers{}, err
	}
	for i := range offers {
		if offers[i].SenderBooks, err = offerBooks(ctx, r.db, offerSenderBooksTableName, offers[i].ID); err != nil {
			return model.ListOffers{}, err
		}
		if offers[i].RecipientBooks, err = offerBooks(ctx, r.db, offerRecipientBooksTableName, offers[i].ID); err != nil {
			return model.ListOffers{}, err
		}
	}
	return model.ListOffers{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(offers),
		},
		Items: offers,
	}, nil
}

// CreateOffer persists the offer, its book sets and the originating
// notification atomically.
func (r *repository) CreateOffer(ctx context.Context, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
	var created model.Offer
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insertOffer(ctx, tx, offer, senderBookIDs, recipientBookIDs)
		if err != nil {
			return err
		}
		notif.OfferID = &id
		if _, err := insertNotification(ctx, tx, notif); err != nil {
			return err
		}
		created, err = getOffer(ctx, tx, sq.Eq{"o.id": id})
		return err
	})
	if err != nil {
		r.log.Error("CreateOffer", zap.Error(err))
		return model.Offer{}, err
	}
	return created, nil
}

// CreateCounterOffer atomically deactivates the superseded offer, answers its
// originating notification, and persists the successor with its own
// notification. The deactivated offer must still be active, otherwise the
// thread head moved under the caller and ErrStaleOffer is returned.
func (r *repository) CreateCounterOffer(ctx context.Context, oldOfferID int, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error) {
	var created model.Offer
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := deactivateOffer(ctx, tx, oldOfferID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`update notifications set is_answered = true where offer_id = $1`, oldOfferID); err != nil {
			return err
		}
		offer.PreviousOfferID = &oldOfferID
		id, err := insertOffer(ctx, tx, offer, senderBookIDs, recipientBookIDs)
		if err != nil {
			return err
		}
		notif.OfferID = &id
		if _, err := insertNotification(ctx, tx, notif); err != nil {
			return err
		}
		created, err = getOffer(ctx, tx, sq.Eq{"o.id": id})
		return err
	})
	if err != nil {
		return model.Offer{}, err
	}
	return created, nil
}

func (r *repository) DeactivateOffer(ctx context.Context, offerID int) error {
	return deactivateOffer(ctx, r.db, offerID)
}

// SettleOffer flags the offer accepted and executes every book hand-over in
// one transaction: the holder moves into the ex-owner history and the book
// goes in flight towards its new owner.
func (r *repository) SettleOffer(ctx context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`update offers set is_accept = true, is_active = false where id = $1`, offerID); err != nil {
			return err
		}
		for _, t := range transfers {
			if _, err := tx.ExecContext(ctx,
				`insert into book_ex_owners (book_id, user_id) values ($1, $2)`, t.BookID, t.FromUserID); err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`update books set owner_id = null, previous_owner_id = $2, next_owner_id = $3
				 where id = $1 and owner_id = $2`, t.BookID, t.FromUserID, t.ToUserID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return errs.ErrNotOwned
			}
		}
		if _, err := tx.ExecContext(ctx,
			`update notifications set is_answered = true where offer_id = $1`, offerID); err != nil {
			return err
		}
		notif.OfferID = &offerID
		_, err := insertNotification(ctx, tx, notif)
		return err
	})
}

func (r *repository) DeclineOffer(ctx context.Context, offerID int, notif model.Notification) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := deactivateOffer(ctx, tx, offerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`update notifications set is_answered = true where offer_id = $1`, offerID); err != nil {
			return err
		}
		notif.OfferID = &offerID
		_, err := insertNotification(ctx, tx, notif)
		return err
	})
}
