package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"deskbot/internal/events"
	"deskbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type apiCall struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type fakeSheetsAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":append"):
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'Bookings'!A7:F7"}}`))
	case r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":42,"title":"Schedule"}}]}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeSheetsAPI) snapshot() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestSheets(t *testing.T) (*SheetsService, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s, err := NewSheetsServiceWithOptions(context.Background(), "sheet-1", "Bookings", zerolog.Nop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s, api
}

func sampleBooking() models.BookingView {
	return models.BookingView{
		ID:       3,
		UserID:   5,
		UserName: "alice",
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		RoomName: "A",
		DeskName: "A1",
	}
}

func TestBookingRowValues(t *testing.T) {
	values := bookingRowValues(sampleBooking())
	expected := []interface{}{int64(3), "2025-01-10", "A", "A1", int64(5), "alice"}
	assert.Equal(t, expected, values)
}

func TestParseRow(t *testing.T) {
	row, ok := parseRow("'Bookings'!A12:F12")
	assert.True(t, ok)
	assert.Equal(t, 12, row)

	_, ok = parseRow("garbage")
	assert.False(t, ok)
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{rowCache: make(map[int64]int)}

	s.setCachedRow(100, 5)
	row, ok := s.getCachedRow(100)
	assert.True(t, ok)
	assert.Equal(t, 5, row)

	s.deleteCacheRow(100)
	_, ok = s.getCachedRow(100)
	assert.False(t, ok)

	s.setCachedRow(200, 10)
	s.ClearCache()
	_, ok = s.getCachedRow(200)
	assert.False(t, ok)
}

func TestPrepareDateHeaders(t *testing.T) {
	s := &SheetsService{}
	headers, cols := s.prepareDateHeaders(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []interface{}{"Desk", "01.01", "02.01", "03.01"}, headers)
}

func TestFormatScheduleCell(t *testing.T) {
	s := &SheetsService{}

	val, color := s.formatScheduleCell("A/A1", nil)
	assert.Equal(t, "free", val)
	assert.Equal(t, freeColor, color)

	val, color = s.formatScheduleCell("A/A1", []models.BookingView{sampleBooking()})
	assert.Equal(t, "alice", val)
	assert.Equal(t, bookedColor, color)
}

func TestAppendAndClearBooking(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSheets(t)

	require.NoError(t, s.AppendBooking(ctx, sampleBooking()))
	row, ok := s.getCachedRow(3)
	require.True(t, ok)
	assert.Equal(t, 7, row)

	require.NoError(t, s.ClearBooking(ctx, 3))
	_, ok = s.getCachedRow(3)
	assert.False(t, ok)

	// Unknown rows are skipped without an API call.
	require.NoError(t, s.ClearBooking(ctx, 99))

	calls := api.snapshot()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasSuffix(calls[0].Path, "'Bookings'!A:F:append"), calls[0].Path)
	assert.True(t, strings.HasSuffix(calls[1].Path, "'Bookings'!A7:F7:clear"), calls[1].Path)
}

func TestSyncBookings(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSheets(t)

	b2 := sampleBooking()
	b2.ID = 4
	require.NoError(t, s.SyncBookings(ctx, []models.BookingView{sampleBooking(), b2}))

	row, ok := s.getCachedRow(4)
	require.True(t, ok)
	assert.Equal(t, 3, row)

	calls := api.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	values, _ := calls[1].Body["values"].([]interface{})
	assert.Len(t, values, 3)
}

func TestWriteSchedule(t *testing.T) {
	ctx := context.Background()
	s, api := newTestSheets(t)

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.WriteSchedule(ctx, []string{"A/A1", "A/A2"}, []models.BookingView{sampleBooking()}, start, start))

	calls := api.snapshot()
	require.Len(t, calls, 3)
	values, _ := calls[0].Body["values"].([]interface{})
	require.Len(t, values, 3)
	assert.Equal(t, []interface{}{"A/A1", "alice"}, values[1])
	assert.Equal(t, []interface{}{"A/A2", "free"}, values[2])
	assert.True(t, strings.HasSuffix(calls[2].Path, ":batchUpdate"), calls[2].Path)
}

func TestRunAppliesEvents(t *testing.T) {
	s, api := newTestSheets(t)
	bus := events.NewEventBus(nil)
	s.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, nil, time.Hour)
		close(done)
	}()

	bus.Publish(events.NewBookingEvent(events.BookingCreated, events.BookingPayload{
		BookingID: 3, UserID: 5, UserName: "alice", Date: "2025-01-10", RoomName: "A", DeskName: "A1",
	}))

	assert.Eventually(t, func() bool { return len(api.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

type fakeLister struct{}

func (fakeLister) UpcomingBookings(context.Context) ([]models.BookingView, error) {
	return nil, nil
}

func (fakeLister) DeskLabels(context.Context) ([]string, error) {
	return []string{"A/A1"}, nil
}

func TestResyncScheduleStartsInOfficeTimezone(t *testing.T) {
	s, api := newTestSheets(t)
	s.SetLocation(time.FixedZone("UTC+3", 3*60*60))
	// Still Friday in UTC, already Saturday in the office.
	s.now = func() time.Time { return time.Date(2025, 1, 10, 22, 30, 0, 0, time.UTC) }

	s.resync(context.Background(), fakeLister{})

	var header []interface{}
	for _, c := range api.snapshot() {
		if c.Method != http.MethodPut || !strings.Contains(c.Path, "Schedule") {
			continue
		}
		values, _ := c.Body["values"].([]interface{})
		require.NotEmpty(t, values)
		header, _ = values[0].([]interface{})
	}
	require.Len(t, header, scheduleDays+1)
	assert.Equal(t, "Desk", header[0])
	assert.Equal(t, "11.01", header[1])
	assert.Equal(t, "24.01", header[scheduleDays])
}
