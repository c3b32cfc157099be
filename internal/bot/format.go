package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"deskbot/internal/admin"
	"deskbot/internal/booking"
	"deskbot/internal/models"
	"deskbot/shared/access"
)

const (
	textInternalError   = "Something went wrong, please try again later."
	textRateLimited     = "Too many requests, please slow down."
	textUnknownCommand  = "Unknown command. Send /help for the list of commands."
	textUseCommands     = "Send /book to reserve a desk or /help for all commands."
	textDialogCancelled = "Cancelled."
	textChooseRoom      = "Choose a room:"
	textNoRooms         = "There are no rooms open for booking."
	textChooseRandom    = "Choose a date and a free desk will be picked for you:"
	textRestart         = "This dialog has expired. Send /book to start again."
	textAskName         = "Please send the display name you want to use."
	textNoBookings      = "You have no upcoming bookings."
	textSendFloorPlan   = "Send the floor plan as a photo, or an URL."
)

const userHelp = `Commands:
/start [name] - register with a display name
/book - reserve a desk
/random - reserve a random free desk
/my - your upcoming bookings
/cancel <id> - cancel a booking, or the current dialog without an id
/plan <room> - show a room's floor plan
/ooo on|off - mark yourself out of office
/help - this message`

const adminHelp = `Admin:
/rooms - office layout
/add_room <room>, /rename_room <old> <new>, /room_toggle <room>, /del_room <room>
/floor_plan <room> [url]
/add_desk <room> <desk>, /desk_toggle <desk>, /del_desk <desk>
/team <team>, /team_room <team> [room], /team_add <team> <user> [role], /team_remove <user>
/assign <user> <desk> <weekday>, /unassign <user> <weekday>, /assignments [room]
/ban <user>, /unban <user>, /admin <user> on|off
/bookings <date>
/export`

func helpText(isAdmin bool) string {
	if isAdmin {
		return userHelp + "\n\n" + adminHelp
	}
	return userHelp
}

func welcomeText(u *models.User) string {
	return fmt.Sprintf("Welcome, %s! Send /book to reserve a desk.", u.DisplayName)
}

func chooseDateText(room string) string {
	return fmt.Sprintf("Room %s. Choose a date:", room)
}

func chooseDeskText(room, date string, total int) string {
	return fmt.Sprintf("Room %s, %s. %d free desk(s), choose one:", room, date, total)
}

func noDesksText(room, date string) string {
	return fmt.Sprintf("No free desks in %s on %s.", room, date)
}

func confirmText(room, date, desk string) string {
	return fmt.Sprintf("Book desk %s in %s on %s?", desk, room, date)
}

func bookedText(c *booking.Confirmation, date string) string {
	return fmt.Sprintf("Booked desk %s in %s on %s. Booking #%d.", c.DeskName, c.RoomName, date, c.BookingID)
}

func cancelledText(c *booking.Confirmation) string {
	return fmt.Sprintf("Booking #%d (%s, desk %s on %s) cancelled.",
		c.BookingID, c.RoomName, c.DeskName, c.Date.Format(models.DateKey))
}

func myBookingsText(list []models.BookingView, formatDate func(time.Time) string) string {
	var sb strings.Builder
	sb.WriteString("Your bookings:\n")
	for _, v := range list {
		fmt.Fprintf(&sb, "#%d %s - %s, desk %s\n", v.ID, formatDate(v.Date), v.RoomName, v.DeskName)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func bookingsOnText(date string, list []models.BookingView) string {
	if len(list) == 0 {
		return fmt.Sprintf("No bookings on %s.", date)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bookings on %s:\n", date)
	for _, v := range list {
		fmt.Fprintf(&sb, "%s / %s - %s (#%d)\n", v.RoomName, v.DeskName, v.UserName, v.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func layoutText(layout []admin.RoomLayout) string {
	if len(layout) == 0 {
		return "No rooms yet. Add one with /add_room <room>."
	}
	var sb strings.Builder
	for _, rl := range layout {
		fmt.Fprintf(&sb, "%s%s\n", rl.Room.Name, offMark(rl.Room.IsAvailable))
		names := make([]string, 0, len(rl.Desks))
		for _, d := range rl.Desks {
			names = append(names, d.Name+offMark(d.IsAvailable))
		}
		if len(names) == 0 {
			sb.WriteString("  (no desks)\n")
		} else {
			fmt.Fprintf(&sb, "  %s\n", strings.Join(names, ", "))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func assignmentsText(list []models.AssignmentView) string {
	if len(list) == 0 {
		return "No assignments."
	}
	var sb strings.Builder
	for _, a := range list {
		ooo := ""
		if a.OutOfOffice {
			ooo = " (out of office)"
		}
		fmt.Fprintf(&sb, "%s: %s / %s - %s%s\n", a.Weekday, a.RoomName, a.DeskName, a.UserName, ooo)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func offMark(available bool) string {
	if available {
		return ""
	}
	return " [off]"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// errorText maps domain errors to replies. Unknown errors get the generic text.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case access.IsAccessDenied(err):
		return err.Error()
	case errors.Is(err, booking.ErrInvalidDate):
		return "That date is not valid."
	case errors.Is(err, booking.ErrPastDate):
		return "That date is in the past."
	case errors.Is(err, booking.ErrDateTooFar):
		return "That date is too far ahead."
	case errors.Is(err, booking.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, booking.ErrDeskNotFound):
		return "Desk not found."
	case errors.Is(err, booking.ErrDeskUnavailable):
		return "That desk is no longer available. Please choose another one."
	case errors.Is(err, booking.ErrUserNotFound):
		return "Register first with /start."
	case errors.Is(err, booking.ErrAlreadyBooked):
		return "Sorry, this desk was just booked by someone else. Please choose another one."
	case errors.Is(err, booking.ErrUserAlreadyBooked):
		return "You already have a booking on this date."
	case errors.Is(err, booking.ErrNoDesks):
		return "No free desks are available for you on this date."
	case errors.Is(err, booking.ErrBookingNotFound):
		return "Booking not found."
	case errors.Is(err, booking.ErrForbidden):
		return "You can only cancel your own bookings."
	case errors.Is(err, admin.ErrDeskAssigned):
		return "That desk is already assigned on this weekday."
	case errors.Is(err, admin.ErrUserAssigned):
		return "That user already has a desk on this weekday."
	case errors.Is(err, admin.ErrDuplicate):
		return "That name is already taken."
	case errors.Is(err, admin.ErrNotFound):
		return "Not found."
	case errors.Is(err, admin.ErrInvalidInput):
		return "Invalid input."
	}
	return textInternalError
}
