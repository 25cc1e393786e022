package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clothingrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	ctx := context.Background()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	s := newSheetsService(srv, "bookings_tid")
	s.now = func() time.Time { return fixedNow }
	return mux, s
}

func sampleBooking(id string) *models.Booking {
	return &models.Booking{
		ID:            id,
		ProductID:     "product-1",
		CustomerName:  "Jane Roe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+1 555 0100",
		FromDate:      "2024-03-02",
		ToDate:        "2024-03-04",
		Status:        models.BookingActive,
		CreatedAt:     fixedNow,
	}
}

func decodeValues(t *testing.T, r *http.Request) [][]interface{} {
	t.Helper()
	var body sheets.ValueRange
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body.Values
}

func TestSheetsService_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"booking-a"}, {}, {"booking-b"}},
		})
	})
	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow("booking-a")
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	row, _ = s.getCachedRow("booking-b")
	assert.Equal(t, 4, row)
	_, ok = s.getCachedRow("ID")
	assert.False(t, ok)
}

func TestSheetsService_UpsertBooking_Append(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	var appended [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		appended = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:K10"},
		})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking("booking-new")))

	require.Len(t, appended, 1)
	assert.Equal(t, "booking-new", appended[0][0])
	assert.Equal(t, float64(3), appended[0][7])
	assert.Equal(t, "active", appended[0][8])

	row, ok := s.getCachedRow("booking-new")
	assert.True(t, ok)
	assert.Equal(t, 10, row)
}

func TestSheetsService_UpsertBooking_Update(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("booking-1", 2)
	called := false
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking("booking-1")))
	assert.True(t, called)
}

func TestSheetsService_UpdateBookingStatus(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"booking-x"}, {"booking-y"}},
		})
	})
	var status, updated [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!I3:I3", func(w http.ResponseWriter, r *http.Request) {
		status = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!K3:K3", func(w http.ResponseWriter, r *http.Request) {
		updated = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.UpdateBookingStatus(context.Background(), "booking-y", "cancelled"))
	assert.Equal(t, [][]interface{}{{"cancelled"}}, status)
	assert.Equal(t, [][]interface{}{{"2024-03-01 12:00:00"}}, updated)
}

func TestSheetsService_UpdateBookingStatus_NotFound(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})

	err := s.UpdateBookingStatus(context.Background(), "booking-missing", "cancelled")
	assert.ErrorIs(t, err, errRowNotFound)
}

func TestSheetsService_ReplaceBookings(t *testing.T) {
	mux, s := setupMockServer(t)
	var written [][]interface{}
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1:K3", func(w http.ResponseWriter, r *http.Request) {
		written = decodeValues(t, r)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	bookings := []models.Booking{*sampleBooking("booking-a"), *sampleBooking("booking-b")}
	require.NoError(t, s.ReplaceBookings(context.Background(), bookings))

	require.Len(t, written, 3)
	assert.Equal(t, "ID", written[0][0])
	assert.Equal(t, "booking-b", written[2][0])
	row, _ := s.getCachedRow("booking-b")
	assert.Equal(t, 3, row)
}

func TestSheetsService_FindBookingRow_EmptyID(t *testing.T) {
	_, s := setupMockServer(t)
	_, err := s.FindBookingRow(context.Background(), "")
	assert.Error(t, err)
}

func TestParseUpdatedRow(t *testing.T) {
	row, ok := parseUpdatedRow("Bookings!A10:K10")
	assert.True(t, ok)
	assert.Equal(t, 10, row)

	_, ok = parseUpdatedRow("garbage")
	assert.False(t, ok)
}
