package errs

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUserName        = errors.New("username is required")
	ErrNotAuthorized   = errors.New("not authorized for this operation")
	ErrSelfOffer       = errors.New("cannot make an offer for your own book")
	ErrSelfLike        = errors.New("cannot like your own book")
	ErrNoChange        = errors.New("counter-offer changes nothing")
	ErrStaleOffer      = errors.New("offer is no longer active")
	ErrNotTradable     = errors.New("book is not tradable")
	ErrNotOwned        = errors.New("book does not belong to the expected owner")
	ErrSelfRecipient   = errors.New("cannot hand a book over to yourself")
	ErrAlreadyAnswered = errors.New("notification is answered already")
	ErrConflict        = errors.New("already exists")
)
