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

func bookSelect() sq.SelectBuilder {
	return qb.Select(
		"b.id", "b.book_uid", "b.title", "b.author", "b.category", "b.image_url", "b.is_tradable",
		"b.owner_id", "b.previous_owner_id", "b.next_owner_id",
		"o.username as owner", "p.username as previous_owner", "n.username as next_owner",
		"(select count(*) from "+bookLikesTableName+" bl where bl.book_id = b.id) as likes_count",
	).From(booksTableName + " b").
		LeftJoin(usersTableName + " o on o.id = b.owner_id").
		LeftJoin(usersTableName + " p on p.id = b.previous_owner_id").
		LeftJoin(usersTableName + " n on n.id = b.next_owner_id")
}

func getBook(ctx context.Context, q sqlx.ExtContext, pred interface{}, args ...interface{}) (model.Book, error) {
	query, qargs, err := bookSelect().Where(pred, args...).Limit(1).ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := sqlx.GetContext(ctx, q, &book, query, qargs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) GetBookByUid(ctx context.Context, bookUid string) (model.Book, error) {
	return getBook(ctx, r.db, sq.Eq{"b.book_uid": bookUid})
}

func (r *repository) GetBooksByUids(ctx context.Context, bookUids []string) ([]model.Book, error) {
	if len(bookUids) == 0 {
		return nil, nil
	}
	query, args, err := bookSelect().
		Where(sq.Eq{"b.book_uid": bookUids}).
		OrderBy("b.title").
		ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	if len(books) != len(bookUids) {
		return nil, errs.ErrNotFound
	}
	return books, nil
}

func (r *repository) CreateBook(ctx context.Context, ownerID int, req model.CreateBookRequest) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("book_uid", "title", "author", "category", "image_url", "owner_id").
		Values(uuid.New(), req.Title, req.Author, req.Category, req.ImageURL, ownerID).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var id int
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", query), zap.Any("args", args))
		return model.Book{}, err
	}
	return getBook(ctx, r.db, sq.Eq{"b.id": id})
}

func (r *repository) UpdateBook(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.Book, error) {
	query, args, err := qb.Update(booksTableName).
		Set("title", req.Title).
		Set("author", req.Author).
		Set("category", req.Category).
		Set("image_url", req.ImageURL).
		Where(sq.Eq{"id": bookID}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return model.Book{}, err
	}
	return getBook(ctx, r.db, sq.Eq{"b.id": bookID})
}

func (r *repository) SetTradable(ctx context.Context, bookID int, tradable bool) error {
	query, args, err := qb.Update(booksTableName).
		Set("is_tradable", tradable).
		Where(sq.Eq{"id": bookID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) ListBooks(ctx context.Context, req model.ListBooksRequest) (model.ListBooks, error) {
	q := bookSelect().
		Where("b.owner_id is not null").
		Where(sq.Eq{"o.is_active": true})

	if req.Search != "" {
		switch req.SearchBy {
		case "author":
			q = q.Where(sq.ILike{"b.author": "%" + req.Search + "%"})
		case "owner":
			q = q.Where(sq.ILike{"o.username": "%" + req.Search + "%"})
		default:
			q = q.Where(sq.ILike{"b.title": "%" + req.Search + "%"})
		}
	}
	q = q.OrderBy("likes_count desc", "b.title")
	if req.Page != 0 && req.Size != 0 {
		q = q.Limit(uint64(req.Size)).Offset(uint64((req.Page - 1) * req.Size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}
	return model.ListBooks{
		Paging: model.Paging{
			Page:          req.Page,
			PageSize:      req.Size,
			TotalElements: len(books),
		},
		Items: books,
	}, nil
}

func (r *repository) ListBooksByRole(ctx context.Context, userID int, role model.BookRole, page, size int) (model.ListBooks, error) {
	q := bookSelect()
	switch role {
	case model.RoleOwner:
		q = q.Where(sq.Eq{"b.owner_id": userID})
	case model.RoleNextOwner:
		q = q.Where(sq.Eq{"b.next_owner_id": userID})
	case model.RolePreviousOwner:
		q = q.Where(sq.Eq{"b.previous_owner_id": userID})
	case model.RoleExOwner:
		q = q.Where("exists (select 1 from "+bookExOwnersTableName+" xo where xo.book_id = b.id and xo.user_id = ?)", userID)
	default:
		return model.ListBooks{}, errors.Errorf("unknown book role %q", role)
	}
	q = q.OrderBy("b.title")
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}
	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(books),
		},
		Items: books,
	}, nil
}

// ReceiveBook finalizes an in-flight transfer: the designated next owner
// becomes the owner and both transfer ends are cleared. A like the new owner
// had on the book is dropped silently.
func (r *repository) ReceiveBook(ctx context.Context, bookID, userID int) (model.Book, error) {
	var book model.Book
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`update books set owner_id = $2, previous_owner_id = null, next_owner_id = null
			 where id = $1 and next_owner_id = $2`, bookID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotAuthorized
		}
		if _, err := tx.ExecContext(ctx,
			`delete from book_likes where book_id = $1 and user_id = $2`, bookID, userID); err != nil {
			return err
		}
		book, err = getBook(ctx, tx, sq.Eq{"b.id": bookID})
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// RelinquishBook gives a book up outside of a trade. The owner moves into the
// ex-owner history; when a next owner is designated, the transfer ends are set
// and the hand-over notification is written in the same transaction.
func (r *repository) RelinquishBook(ctx context.Context, bookID, ownerID int, nextOwnerID *int, notif *model.Notification) (model.Book, error) {
	var book model.Book
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		upd := qb.Update(booksTableName).
			Set("owner_id", nil).
			Where(sq.Eq{"id": bookID, "owner_id": ownerID})
		if nextOwnerID != nil {
			upd = upd.Set("previous_owner_id", ownerID).Set("next_owner_id", *nextOwnerID)
		}
		query, args, err := upd.ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.ErrNotAuthorized
		}
		if _, err := tx.ExecContext(ctx,
			`insert into book_ex_owners (book_id, user_id) values ($1, $2)`, bookID, ownerID); err != nil {
			return err
		}
		if notif != nil {
			if _, err := insertNotification(ctx, tx, *notif); err != nil {
				return err
			}
		}
		book, err = getBook(ctx, tx, sq.Eq{"b.id": bookID})
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) HasLike(ctx context.Context, bookID, userID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`select exists (select 1 from book_likes where book_id = $1 and user_id = $2)`, bookID, userID).
		Scan(&exists)
	return exists, err
}

// SetLike toggles like membership and writes the pre-answered like/dislike
// notification to the owner in the same transaction. A nil notif keeps the
// toggle silent (ownerless books have nobody to notify).
func (r *repository) SetLike(ctx context.Context, bookID, userID int, like bool, notif *model.Notification) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if like {
			if _, err := tx.ExecContext(ctx,
				`insert into book_likes (book_id, user_id) values ($1, $2)`, bookID, userID); err != nil {
				if isUniqueViolation(err) {
					return errs.ErrConflict
				}
				return err
			}
		} else {
			res, err := tx.ExecContext(ctx,
				`delete from book_likes where book_id = $1 and user_id = $2`, bookID, userID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return errs.ErrNotFound
			}
		}
		if notif == nil {
			return nil
		}
		_, err := insertNotification(ctx, tx, *notif)
		return err
	})
}
