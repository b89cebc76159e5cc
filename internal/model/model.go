package model

import (
	"time"
)

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type User struct {
	ID       int    `json:"-" db:"id"`
	UserUid  string `json:"userUid" db:"user_uid"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	IsActive bool   `json:"isActive" db:"is_active"`
}

type Book struct {
	ID              int     `json:"-" db:"id"`
	BookUid         string  `json:"bookUid" db:"book_uid"`
	Title           string  `json:"title" db:"title"`
	Author          string  `json:"author" db:"author"`
	Category        *string `json:"category,omitempty" db:"category"`
	ImageURL        *string `json:"imageUrl,omitempty" db:"image_url"`
	IsTradable      bool    `json:"isTradable" db:"is_tradable"`
	OwnerID         *int    `json:"-" db:"owner_id"`
	PreviousOwnerID *int    `json:"-" db:"previous_owner_id"`
	NextOwnerID     *int    `json:"-" db:"next_owner_id"`
	Owner           *string `json:"owner,omitempty" db:"owner"`
	PreviousOwner   *string `json:"previousOwner,omitempty" db:"previous_owner"`
	NextOwner       *string `json:"nextOwner,omitempty" db:"next_owner"`
	LikesCount      int     `json:"likesCount" db:"likes_count"`
}

type OwnershipKind int

const (
	// OwnershipOwned - the book sits with its current owner.
	OwnershipOwned OwnershipKind = iota
	// OwnershipInFlight - mid-transfer: the previous owner still has to send
	// it, the next owner has to confirm receipt.
	OwnershipInFlight
	// OwnershipOrphaned - relinquished with no designated next owner.
	OwnershipOrphaned
)

// OwnershipState is the tagged view over the three nullable owner columns.
// Exactly one of the three kinds holds: owner set, both transfer ends set,
// or none of them.
type OwnershipState struct {
	Kind OwnershipKind
	// OwnerID is set for OwnershipOwned.
	OwnerID int
	// FromID/ToID are set for OwnershipInFlight.
	FromID int
	ToID   int
}

func (b Book) Ownership() OwnershipState {
	switch {
	case b.OwnerID != nil:
		return OwnershipState{Kind: OwnershipOwned, OwnerID: *b.OwnerID}
	case b.NextOwnerID != nil && b.PreviousOwnerID != nil:
		return OwnershipState{Kind: OwnershipInFlight, FromID: *b.PreviousOwnerID, ToID: *b.NextOwnerID}
	default:
		return OwnershipState{Kind: OwnershipOrphaned}
	}
}

func (b Book) OwnedBy(userID int) bool {
	st := b.Ownership()
	return st.Kind == OwnershipOwned && st.OwnerID == userID
}

// BookRole selects which owner column a per-user book listing filters on.
type BookRole string

const (
	RoleOwner         BookRole = "owner"
	RoleNextOwner     BookRole = "next_owner"
	RolePreviousOwner BookRole = "previous_owner"
	RoleExOwner       BookRole = "ex_owner"
)

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type ListBooksRequest struct {
	Search   string
	SearchBy string // title, author, owner
	Page     int
	Size     int
}

type CreateBookRequest struct {
	Title    string  `json:"title" validate:"required,max=64"`
	Author   string  `json:"author" validate:"required,max=64"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=32"`
	ImageURL *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type UpdateBookRequest struct {
	Title    string  `json:"title" validate:"required,max=64"`
	Author   string  `json:"author" validate:"required,max=64"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=32"`
	ImageURL *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type RelinquishBookRequest struct {
	// ToUsername designates the user the book is handed over to.
	// Empty means the book is given up with no successor.
	ToUsername *string `json:"toUsername,omitempty" validate:"omitempty,max=150"`
}

type Offer struct {
	ID               int       `json:"-" db:"id"`
	OfferUid         string    `json:"offerUid" db:"offer_uid"`
	SenderID         int       `json:"-" db:"sender_id"`
	RecipientID      int       `json:"-" db:"recipient_id"`
	Sender           string    `json:"sender" db:"sender"`
	Recipient        string    `json:"recipient" db:"recipient"`
	IsActive         bool      `json:"isActive" db:"is_active"`
	IsAccept         bool      `json:"isAccept" db:"is_accept"`
	PreviousOfferID  *int      `json:"-" db:"previous_offer_id"`
	PreviousOfferUid *string   `json:"previousOfferUid,omitempty" db:"previous_offer_uid"`
	ReceivedDate     time.Time `json:"receivedDate" db:"received_date"`

	SenderBooks    []Book `json:"senderBooks"`
	RecipientBooks []Book `json:"recipientBooks"`
}

type ListOffers struct {
	Paging `json:",inline"`
	Items  []Offer `json:"items"`
}

type CreateOfferRequest struct {
	WantedBookUid string `json:"wantedBookUid" validate:"required,uuid"`
	// SenderBookUids is what the sender puts on the table.
	SenderBookUids []string `json:"senderBookUids" validate:"required,min=1,dive,uuid"`
	// RecipientBookUids are extra books wanted on top of the wanted one.
	RecipientBookUids []string `json:"recipientBookUids" validate:"omitempty,dive,uuid"`
}

type NegotiateOfferRequest struct {
	// Sides are named from the counter-offer's perspective: the acting
	// user's counterpart becomes the new recipient.
	SenderBookUids    []string `json:"senderBookUids" validate:"required,min=1,dive,uuid"`
	RecipientBookUids []string `json:"recipientBookUids" validate:"required,min=1,dive,uuid"`
}

type AcceptOutcome string

const (
	OutcomeSettled  AcceptOutcome = "SETTLED"
	OutcomeInactive AcceptOutcome = "INACTIVE"
)

// AcceptOfferResult is the discriminated outcome of AcceptOffer: either the
// settlement went through, or the offer went inactive because books moved
// away since it was proposed.
type AcceptOfferResult struct {
	Outcome               AcceptOutcome `json:"outcome"`
	Offer                 Offer         `json:"offer"`
	MissingSenderBooks    []Book        `json:"missingSenderBooks,omitempty"`
	MissingRecipientBooks []Book        `json:"missingRecipientBooks,omitempty"`
}

// Transfer is one book hand-over executed during settlement.
type Transfer struct {
	BookID     int
	FromUserID int
	ToUserID   int
}

type NotificationType string

const (
	NotificationOffered      NotificationType = "OFFERED"
	NotificationCounterOffer NotificationType = "COUNTER_OFFER"
	NotificationDeal         NotificationType = "DEAL"
	NotificationDeclined     NotificationType = "DECLINED"
	NotificationChangeOwner  NotificationType = "CHANGE_OWNER"
	NotificationLiked        NotificationType = "LIKED"
	NotificationDisliked     NotificationType = "DISLIKED"
)

type Notification struct {
	ID              int              `json:"-" db:"id"`
	NotificationUid string           `json:"notificationUid" db:"notification_uid"`
	SenderID        int              `json:"-" db:"sender_id"`
	RecipientID     int              `json:"-" db:"recipient_id"`
	Sender          string           `json:"sender" db:"sender"`
	Recipient       string           `json:"recipient" db:"recipient"`
	BookID          *int             `json:"-" db:"book_id"`
	BookUid         *string          `json:"bookUid,omitempty" db:"book_uid"`
	OfferID         *int             `json:"-" db:"offer_id"`
	OfferUid        *string          `json:"offerUid,omitempty" db:"offer_uid"`
	Type            NotificationType `json:"type" db:"type"`
	Message         string           `json:"message" db:"message"`
	IsRead          bool             `json:"isRead" db:"is_read"`
	IsAnswered      bool             `json:"isAnswered" db:"is_answered"`
	ReceivedDate    time.Time        `json:"receivedDate" db:"received_date"`
}

type ListNotifications struct {
	Paging `json:",inline"`
	Items  []Notification `json:"items"`
}

type UnreadCount struct {
	Count int `json:"count"`
}
