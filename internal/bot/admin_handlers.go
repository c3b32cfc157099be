package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"deskbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type adminCommand struct {
	usage   string
	minArgs int
	run     func(ctx context.Context, chatID, userID int64, args []string) (string, error)
}

func (b *Bot) adminCommands() map[string]adminCommand {
	return map[string]adminCommand{
		"rooms": {"/rooms", 0, func(ctx context.Context, _, _ int64, _ []string) (string, error) {
			layout, err := b.admin.Layout(ctx)
			if err != nil {
				return "", err
			}
			return layoutText(layout), nil
		}},
		"add_room": {"/add_room <room>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			r, err := b.admin.AddRoom(ctx, strings.Join(args, " "))
			if err != nil {
				return "", err
			}
			return "Room " + r.Name + " added.", nil
		}},
		"rename_room": {"/rename_room <old> <new>", 2, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			if err := b.admin.RenameRoom(ctx, args[0], args[1]); err != nil {
				return "", err
			}
			return "Room " + args[0] + " renamed to " + args[1] + ".", nil
		}},
		"room_toggle": {"/room_toggle <room>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			on, err := b.admin.ToggleRoom(ctx, args[0])
			if err != nil {
				return "", err
			}
			return "Room " + args[0] + " available: " + onOff(on) + ".", nil
		}},
		"del_room": {"/del_room <room>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			if err := b.admin.DeleteRoom(ctx, args[0]); err != nil {
				return "", err
			}
			return "Room " + args[0] + " deleted with its desks.", nil
		}},
		"floor_plan": {"/floor_plan <room> [url]", 1, func(ctx context.Context, _, userID int64, args []string) (string, error) {
			if len(args) > 1 {
				if err := b.admin.SetFloorPlan(ctx, args[0], args[1]); err != nil {
					return "", err
				}
				return "Floor plan of " + args[0] + " updated.", nil
			}
			err := b.state.SetUserState(ctx, userID, models.StepAwaitFloorMap, map[string]interface{}{keyRoom: args[0]})
			if err != nil {
				return "", err
			}
			return textSendFloorPlan, nil
		}},
		"add_desk": {"/add_desk <room> <desk>", 2, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			d, err := b.admin.AddDesk(ctx, args[0], args[1])
			if err != nil {
				return "", err
			}
			return "Desk " + d.Name + " added to " + args[0] + ".", nil
		}},
		"desk_toggle": {"/desk_toggle <desk>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			on, err := b.admin.ToggleDesk(ctx, args[0])
			if err != nil {
				return "", err
			}
			return "Desk " + args[0] + " available: " + onOff(on) + ".", nil
		}},
		"del_desk": {"/del_desk <desk>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			if err := b.admin.DeleteDesk(ctx, args[0]); err != nil {
				return "", err
			}
			return "Desk " + args[0] + " deleted.", nil
		}},
		"team": {"/team <team>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			t, err := b.admin.CreateTeam(ctx, strings.Join(args, " "))
			if err != nil {
				return "", err
			}
			return "Team " + t.Name + " created.", nil
		}},
		"team_room": {"/team_room <team> [room]", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			room := ""
			if len(args) > 1 {
				room = args[1]
			}
			if err := b.admin.SetPreferredRoom(ctx, args[0], room); err != nil {
				return "", err
			}
			if room == "" {
				return "Preferred room of " + args[0] + " cleared.", nil
			}
			return "Team " + args[0] + " now prefers " + room + ".", nil
		}},
		"team_add": {"/team_add <team> <user> [role]", 2, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			u, err := b.admin.ResolveUser(ctx, args[1])
			if err != nil {
				return "", err
			}
			role := ""
			if len(args) > 2 {
				role = args[2]
			}
			if err := b.admin.AddMember(ctx, args[0], u.TelegramID, role); err != nil {
				return "", err
			}
			return u.DisplayName + " joined " + args[0] + ".", nil
		}},
		"team_remove": {"/team_remove <user>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if err := b.admin.RemoveMember(ctx, u.TelegramID); err != nil {
				return "", err
			}
			return u.DisplayName + " left their team.", nil
		}},
		"assign": {"/assign <user> <desk> <weekday>", 3, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			wd, ok := models.ParseWeekday(args[2])
			if !ok {
				return "Weekday must be mon..sun or 0..6.", nil
			}
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if _, err := b.admin.Assign(ctx, u.TelegramID, args[1], wd); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s has desk %s every %s.", u.DisplayName, args[1], wd), nil
		}},
		"unassign": {"/unassign <user> <weekday>", 2, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			wd, ok := models.ParseWeekday(args[1])
			if !ok {
				return "Weekday must be mon..sun or 0..6.", nil
			}
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if err := b.admin.Unassign(ctx, u.TelegramID, wd); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s no longer has a desk on %s.", u.DisplayName, wd), nil
		}},
		"assignments": {"/assignments [room]", 0, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			room := ""
			if len(args) > 0 {
				room = args[0]
			}
			list, err := b.admin.Assignments(ctx, room)
			if err != nil {
				return "", err
			}
			return assignmentsText(list), nil
		}},
		"ban": {"/ban <user>", 1, func(ctx context.Context, _, userID int64, args []string) (string, error) {
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if err := b.access.Ban(ctx, u.TelegramID, userID); err != nil {
				return "", err
			}
			return u.DisplayName + " banned.", nil
		}},
		"unban": {"/unban <user>", 1, func(ctx context.Context, _, userID int64, args []string) (string, error) {
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if err := b.access.Unban(ctx, u.TelegramID, userID); err != nil {
				return "", err
			}
			return u.DisplayName + " unbanned.", nil
		}},
		"admin": {"/admin <user> on|off", 2, func(ctx context.Context, _, userID int64, args []string) (string, error) {
			on := strings.EqualFold(args[1], "on")
			if !on && !strings.EqualFold(args[1], "off") {
				return "Usage: /admin <user> on|off", nil
			}
			u, err := b.admin.ResolveUser(ctx, args[0])
			if err != nil {
				return "", err
			}
			if err := b.access.SetAdmin(ctx, u.TelegramID, on, userID); err != nil {
				return "", err
			}
			return u.DisplayName + " admin: " + onOff(on) + ".", nil
		}},
		"bookings": {"/bookings <date>", 1, func(ctx context.Context, _, _ int64, args []string) (string, error) {
			date, err := b.resolver.ParseDate(strings.Join(args, " "))
			if err != nil {
				return "", err
			}
			list, err := b.admin.BookingsOn(ctx, date)
			if err != nil {
				return "", err
			}
			return bookingsOnText(b.resolver.FormatDate(date), list), nil
		}},
		"export": {"/export", 0, func(ctx context.Context, chatID, _ int64, _ []string) (string, error) {
			if b.exporter == nil {
				return "Export is not configured.", nil
			}
			var buf bytes.Buffer
			if err := b.exporter.Export(ctx, &buf); err != nil {
				return "", err
			}
			doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: b.exporter.Filename(), Bytes: buf.Bytes()})
			if _, err := b.tg.Send(doc); err != nil {
				return "", err
			}
			return "", nil
		}},
	}
}

// handleAdminCommand reports whether the command is an admin command.
// Non-admins get the access denied reply.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	cmd, ok := b.adminCommands()[msg.Command()]
	if !ok {
		return false
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	if err := b.access.AdminMiddleware(ctx, userID); err != nil {
		b.reply(chatID, errorText(err))
		return true
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < cmd.minArgs {
		b.reply(chatID, "Usage: "+cmd.usage)
		return true
	}

	text, err := cmd.run(ctx, chatID, userID, args)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("command", msg.Command()).Msg("Admin command failed")
		b.reply(chatID, errorText(err))
		return true
	}
	if text != "" {
		b.reply(chatID, text)
	}
	zerolog.Ctx(ctx).Info().Str("command", msg.Command()).Int64("admin_id", userID).Msg("Admin command")
	return true
}

// receiveFloorPlan stores a photo or URL sent after /floor_plan <room>.
func (b *Bot) receiveFloorPlan(ctx context.Context, msg *tgbotapi.Message, room string) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	if err := b.access.AdminMiddleware(ctx, userID); err != nil {
		_ = b.state.ClearUserState(ctx, userID)
		b.reply(chatID, errorText(err))
		return
	}
	plan := strings.TrimSpace(msg.Text)
	if len(msg.Photo) > 0 {
		plan = msg.Photo[len(msg.Photo)-1].FileID
	}
	if plan == "" {
		b.reply(chatID, textSendFloorPlan)
		return
	}
	_ = b.state.ClearUserState(ctx, userID)
	if err := b.admin.SetFloorPlan(ctx, room, plan); err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	b.reply(chatID, "Floor plan of "+room+" updated.")
}
