package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
)

func notificationSelect() sq.SelectBuilder {
	return qb.Select(
		"nt.id", "nt.notification_uid", "nt.sender_id", "nt.recipient_id",
		"s.username as sender", "r.username as recipient",
		"nt.book_id", "b.book_uid", "nt.offer_id", "o.offer_uid",
		"nt.type", "nt.message", "nt.is_read", "nt.is_answered", "nt.received_date",
	).From(notificationsTableName + " nt").
		Join(usersTableName + " s on s.id = nt.sender_id").
		Join(usersTableName + " r on r.id = nt.recipient_id").
		LeftJoin(booksTableName + " b on b.id = nt.book_id").
		LeftJoin(offersTableName + " o on o.id = nt.offer_id")
}

// insertNotification writes one ledger row on whatever transaction the
// calling mutation runs in.
func insertNotification(ctx context.Context, q sqlx.ExtContext, n model.Notification) (int, error) {
	query, args, err := qb.Insert(notificationsTableName).
		Columns("notification_uid", "sender_id", "recipient_id", "book_id", "offer_id", "type", "message", "is_read", "is_answered").
		Values(uuid.New(), n.SenderID, n.RecipientID, n.BookID, n.OfferID, n.Type, n.Message, n.IsRead, n.IsAnswered).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int
	if err := sqlx.GetContext(ctx, q, &id, query, args...); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) GetNotificationByUid(ctx context.Context, notificationUid string) (model.Notification, error) {
	query, args, err := notificationSelect().
		Where(sq.Eq{"nt.notification_uid": notificationUid}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Notification{}, err
	}
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, errs.ErrNotFound
		}
		return model.Notification{}, err
	}
	return n, nil
}

func (r *repository) ListNotifications(ctx context.Context, recipientID int, page, size int) (model.ListNotifications, error) {
	q := notificationSelect().
		Where(sq.Eq{"nt.recipient_id": recipientID}).
		OrderBy("nt.received_date desc")
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.ListNotifications{}, err
	}
	var items []model.Notification
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListNotifications{}, err
	}
	return model.ListNotifications{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

func (r *repository) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`select count(*) from notifications where recipient_id = $1 and is_read = false`, recipientID).
		Scan(&count)
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, notificationID int) error {
	_, err := r.db.ExecContext(ctx,
		`update notifications set is_read = true where id = $1`, notificationID)
	return err
}

func (r *repository) MarkAnswered(ctx context.Context, notificationID int) error {
	res, err := r.db.ExecContext(ctx,
		`update notifications set is_answered = true where id = $1 and is_answered = false`, notificationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrAlreadyAnswered
	}
	return nil
}
