package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/editorial"
	"github.com/geraldfingburke/editorial-core/internal/events"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func TestHandleHealth(t *testing.T) {
	api := &API{Log: zerolog.Nop(), Events: events.NewBus()}
	r := chi.NewRouter()
	api.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleUpdateDraftReturnsConflictOnVersionMismatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "article_id", "status", "version"}).AddRow(1, 10, "draft", 5)
	mock.ExpectQuery("SELECT id, article_id, status, version FROM editorial_drafts").WillReturnRows(rows)
	mock.ExpectRollback()

	api := &API{
		Log:       zerolog.Nop(),
		Events:    events.NewBus(),
		Editorial: editorial.New(db, zerolog.Nop()),
	}
	r := chi.NewRouter()
	api.Routes(r)

	req := httptest.NewRequest(http.MethodPut, "/api/editorial/drafts/1", jsonBody(`{"expected_version":1,"title":"t","body":"b"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleJobEventsStreamsUntilCompleted(t *testing.T) {
	bus := events.NewBus()
	api := &API{Log: zerolog.Nop(), Events: bus}
	r := chi.NewRouter()
	api.Routes(r)

	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Publish(models.ProgressEvent{RunID: "run-1", EventType: "progress", Timestamp: time.Now()})
		bus.Publish(models.ProgressEvent{RunID: "run-1", EventType: "completed", Timestamp: time.Now()})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/run-1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Contains(t, rec.Body.String(), "event: progress")
	require.Contains(t, rec.Body.String(), "event: completed")
}
