// Package google mirrors bookings into a Google Sheets spreadsheet.
package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"deskbot/internal/events"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
	gauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	scheduleSheet = "Schedule"
	queueSize     = 256
	scheduleDays  = 14
)

var bookingHeader = []interface{}{"ID", "Date", "Room", "Desk", "User ID", "User"}

// BookingLister supplies the bookings and desk labels for a full resync.
type BookingLister interface {
	UpcomingBookings(ctx context.Context) ([]models.BookingView, error)
	DeskLabels(ctx context.Context) ([]string, error)
}

// SheetsService appends created bookings, clears cancelled ones and
// periodically rewrites the whole sheet from the database.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        zerolog.Logger

	queue chan events.Event
	loc   *time.Location
	now   func() time.Time

	mu       sync.RWMutex
	rowCache map[int64]int
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := gauth.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewSheetsServiceWithOptions(ctx, spreadsheetID, sheetName, logger, option.WithCredentials(creds))
}

// NewSheetsServiceWithOptions builds the service from raw client options.
func NewSheetsServiceWithOptions(ctx context.Context, spreadsheetID, sheetName string, logger zerolog.Logger, opts ...option.ClientOption) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	if sheetName == "" {
		sheetName = "Bookings"
	}
	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With().Str("component", "sheets").Logger(),
		queue:         make(chan events.Event, queueSize),
		loc:           time.Local,
		now:           time.Now,
		rowCache:      make(map[int64]int),
	}, nil
}

// SetLocation sets the office timezone the schedule window starts in.
func (s *SheetsService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// HandleEvent queues the event for the worker. It never blocks the publisher.
func (s *SheetsService) HandleEvent(e events.Event) error {
	select {
	case s.queue <- e:
		return nil
	default:
		return fmt.Errorf("sheets queue full, dropping %s", e.Type)
	}
}

// Subscribe registers the service on the bus for booking events.
func (s *SheetsService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, s.HandleEvent)
	bus.Subscribe(events.BookingCancelled, s.HandleEvent)
}

// Run processes queued events and resyncs every interval until ctx is done.
func (s *SheetsService) Run(ctx context.Context, lister BookingLister, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.resync(ctx, lister)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			if err := s.apply(ctx, e); err != nil {
				s.logger.Error().Err(err).Str("event", e.Type).Msg("Failed to mirror booking")
			}
		case <-ticker.C:
			s.resync(ctx, lister)
		}
	}
}

func (s *SheetsService) resync(ctx context.Context, lister BookingLister) {
	if lister == nil {
		return
	}
	bookings, err := lister.UpcomingBookings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load bookings for sheets sync")
		return
	}
	if err := s.SyncBookings(ctx, bookings); err != nil {
		s.logger.Error().Err(err).Msg("Sheets sync failed")
	}

	desks, err := lister.DeskLabels(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load desks for schedule")
		return
	}
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if err := s.WriteSchedule(ctx, desks, bookings, start, start.AddDate(0, 0, scheduleDays-1)); err != nil {
		s.logger.Error().Err(err).Msg("Schedule sync failed")
	}
}

func (s *SheetsService) apply(ctx context.Context, e events.Event) error {
	p, err := e.DecodeBooking()
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch e.Type {
	case events.BookingCreated:
		date, err := time.Parse(models.DateKey, p.Date)
		if err != nil {
			return fmt.Errorf("event date %q: %w", p.Date, err)
		}
		return s.AppendBooking(ctx, models.BookingView{
			ID: p.BookingID, UserID: p.UserID, UserName: p.UserName,
			Date: date, RoomName: p.RoomName, DeskName: p.DeskName,
		})
	case events.BookingCancelled:
		return s.ClearBooking(ctx, p.BookingID)
	}
	return nil
}

// AppendBooking adds one row and remembers where it landed.
func (s *SheetsService) AppendBooking(ctx context.Context, b models.BookingView) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(b)}}
	resp, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf("A:F"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %d: %w", b.ID, err)
	}
	if resp.Updates != nil {
		if row, ok := parseRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(b.ID, row)
		}
	}
	s.logger.Debug().Int64("booking_id", b.ID).Msg("Booking appended to sheet")
	return nil
}

// ClearBooking blanks the row of a cancelled booking. Unknown rows are left
// for the next resync.
func (s *SheetsService) ClearBooking(ctx context.Context, bookingID int64) error {
	row, ok := s.getCachedRow(bookingID)
	if !ok {
		s.logger.Debug().Int64("booking_id", bookingID).Msg("Row not cached, waiting for resync")
		return nil
	}
	_, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.rangeOf(fmt.Sprintf("A%d:F%d", row, row)),
		&sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear booking %d: %w", bookingID, err)
	}
	s.deleteCacheRow(bookingID)
	return nil
}

// SyncBookings rewrites the sheet with a header and the given bookings.
func (s *SheetsService) SyncBookings(ctx context.Context, bookings []models.BookingView) error {
	if _, err := s.srv.Spreadsheets.Values.Clear(s.spreadsheetID, s.rangeOf("A:F"),
		&sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, bookingHeader)
	for _, b := range bookings {
		values = append(values, bookingRowValues(b))
	}
	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1"),
		&sheets.ValueRange{Values: values}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.ClearCache()
	for i, b := range bookings {
		s.setCachedRow(b.ID, i+2)
	}
	s.logger.Info().Int("bookings", len(bookings)).Msg("Sheet synced")
	return nil
}

// WriteSchedule writes a desk by date grid to the Schedule sheet. Desks are
// labelled "room/desk" and cells are coloured by occupancy.
func (s *SheetsService) WriteSchedule(ctx context.Context, desks []string, bookings []models.BookingView, start, end time.Time) error {
	headers, cols := s.prepareDateHeaders(start, end)
	byCell := make(map[string][]models.BookingView)
	for _, b := range bookings {
		key := b.RoomName + "/" + b.DeskName + "@" + b.Date.Format(models.DateKey)
		byCell[key] = append(byCell[key], b)
	}

	values := [][]interface{}{headers}
	formats := make([]*sheets.RowData, 0, len(desks))
	for _, desk := range desks {
		row := make([]interface{}, 0, cols+1)
		row = append(row, desk)
		cells := make([]*sheets.CellData, 0, cols)
		for i := 0; i < cols; i++ {
			day := start.AddDate(0, 0, i).Format(models.DateKey)
			val, color := s.formatScheduleCell(desk, byCell[desk+"@"+day])
			row = append(row, val)
			cells = append(cells, &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{BackgroundColor: color},
			})
		}
		values = append(values, row)
		formats = append(formats, &sheets.RowData{Values: cells})
	}

	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, quoteSheet(scheduleSheet)+"!A1",
		&sheets.ValueRange{Values: values}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}

	sheetID, err := s.sheetID(ctx, scheduleSheet)
	if err != nil {
		return err
	}
	_, err = s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			UpdateCells: &sheets.UpdateCellsRequest{
				Start:  &sheets.GridCoordinate{SheetId: sheetID, RowIndex: 1, ColumnIndex: 1},
				Rows:   formats,
				Fields: "userEnteredFormat.backgroundColor",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("colour schedule: %w", err)
	}
	return nil
}

func (s *SheetsService) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

// prepareDateHeaders returns the header row and the number of date columns.
func (s *SheetsService) prepareDateHeaders(start, end time.Time) ([]interface{}, int) {
	headers := []interface{}{"Desk"}
	cols := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		headers = append(headers, d.Format("02.01"))
		cols++
	}
	return headers, cols
}

var (
	freeColor   = &sheets.Color{Red: 0.85, Green: 0.95, Blue: 0.85}
	bookedColor = &sheets.Color{Red: 0.98, Green: 0.85, Blue: 0.85}
)

func (s *SheetsService) formatScheduleCell(desk string, bookings []models.BookingView) (string, *sheets.Color) {
	if len(bookings) == 0 {
		return "free", freeColor
	}
	names := make([]string, 0, len(bookings))
	for _, b := range bookings {
		names = append(names, b.UserName)
	}
	return strings.Join(names, ", "), bookedColor
}

func bookingRowValues(b models.BookingView) []interface{} {
	return []interface{}{
		b.ID,
		b.Date.Format(models.DateKey),
		b.RoomName,
		b.DeskName,
		b.UserID,
		b.UserName,
	}
}

func (s *SheetsService) rangeOf(cells string) string {
	return quoteSheet(s.sheetName) + "!" + cells
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

var rowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// parseRow extracts the first row number from an A1 range like "'Bookings'!A5:F5".
func parseRow(a1 string) (int, bool) {
	m := rowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache forgets all known row positions.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[int64]int)
}
