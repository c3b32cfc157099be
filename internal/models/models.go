package models

import "time"

// User is a bot user keyed by the Telegram user ID.
type User struct {
	TelegramID    int64     `json:"telegram_id"`
	DisplayName   string    `json:"display_name"`
	IsAdmin       bool      `json:"is_admin"`
	IsBanned      bool      `json:"is_banned"`
	IsOutOfOffice bool      `json:"is_out_of_office"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Team groups users and optionally points at the room they prefer.
type Team struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	PreferredRoomID *int64 `json:"preferred_room_id,omitempty"`
}

// TeamMember links a user to at most one team.
type TeamMember struct {
	UserID int64  `json:"user_id"`
	TeamID int64  `json:"team_id"`
	Role   string `json:"role"`
}

// Room is a bookable office room.
type Room struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IsAvailable bool   `json:"is_available"`
	FloorPlan   string `json:"floor_plan,omitempty"` // URL or Telegram file id
}

// Desk belongs to exactly one room.
type Desk struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RoomID      int64  `json:"room_id"`
	IsAvailable bool   `json:"is_available"`
}

// DeskAssignment is a recurring weekday claim of a desk by a user.
type DeskAssignment struct {
	ID      int64   `json:"id"`
	UserID  int64   `json:"user_id"`
	DeskID  int64   `json:"desk_id"`
	Weekday Weekday `json:"weekday"`
}

// AssignmentView is a flattened assignment row for listings.
type AssignmentView struct {
	ID          int64   `json:"id"`
	Weekday     Weekday `json:"weekday"`
	UserID      int64   `json:"user_id"`
	UserName    string  `json:"user_name"`
	OutOfOffice bool    `json:"out_of_office"`
	DeskName    string  `json:"desk_name"`
	RoomName    string  `json:"room_name"`
}

// Booking is a one-shot claim of a desk for a calendar date.
type Booking struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	DeskID    int64     `json:"desk_id"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingView is a flattened booking projection with room and desk names resolved.
type BookingView struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	UserName string    `json:"user_name"`
	Date     time.Time `json:"date"`
	RoomName string    `json:"room_name"`
	DeskName string    `json:"desk_name"`
}

// DateKey is the storage representation of a calendar date.
const DateKey = "2006-01-02"
