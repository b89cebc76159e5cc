package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/errs"
	"github.com/bookswap/bookswap-service/internal/model"
)

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

type BookRepository interface {
	CreateBook(ctx context.Context, ownerID int, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.Book, error)
	SetTradable(ctx context.Context, bookID int, tradable bool) error
	GetBookByUid(ctx context.Context, bookUid string) (model.Book, error)
	GetBooksByUids(ctx context.Context, bookUids []string) ([]model.Book, error)
	ListBooks(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error)
	ListBooksByRole(ctx context.Context, userID int, role model.BookRole, page, size int) (model.ListBooks, error)
	ReceiveBook(ctx context.Context, bookID, userID int) (model.Book, error)
	RelinquishBook(ctx context.Context, bookID, ownerID int, nextOwnerID *int, notif *model.Notification) (model.Book, error)
	HasLike(ctx context.Context, bookID, userID int) (bool, error)
	SetLike(ctx context.Context, bookID, userID int, like bool, notif *model.Notification) error
}

type OfferRepository interface {
	GetOfferByUid(ctx context.Context, offerUid string) (model.Offer, error)
	ListOffersByUser(ctx context.Context, userID int, page, size int) (model.ListOffers, error)
	CreateOffer(ctx context.Context, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error)
	CreateCounterOffer(ctx context.Context, oldOfferID int, offer model.Offer, senderBookIDs, recipientBookIDs []int, notif model.Notification) (model.Offer, error)
	DeactivateOffer(ctx context.Context, offerID int) error
	SettleOffer(ctx context.Context, offerID int, transfers []model.Transfer, notif model.Notification) error
	DeclineOffer(ctx context.Context, offerID int, notif model.Notification) error
}

type NotificationRepository interface {
	GetNotificationByUid(ctx context.Context, notificationUid string) (model.Notification, error)
	ListNotifications(ctx context.Context, recipientID int, page, size int) (model.ListNotifications, error)
	UnreadCount(ctx context.Context, recipientID int) (int, error)
	MarkRead(ctx context.Context, notificationID int) error
	MarkAnswered(ctx context.Context, notificationID int) error
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName               = `users`
	booksTableName               = `books`
	bookExOwnersTableName        = `book_ex_owners`
	bookLikesTableName           = `book_likes`
	offersTableName              = `offers`
	offerSenderBooksTableName    = `offer_sender_books`
	offerRecipientBooksTableName = `offer_recipient_books`
	notificationsTableName       = `notifications`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// withTx runs fn inside a transaction, rolling back on any error.
func (r *repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	query, args, err := qb.Select("id", "user_uid", "username", "email", "is_active").
		From(usersTableName).
		Where(sq.Eq{"username": username, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}
