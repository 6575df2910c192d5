package articles

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

func articleColumns() []string {
	return []string{
		"id", "source_id", "source_name", "original_url", "original_title", "original_content",
		"title_ar", "summary", "seo_title", "seo_description", "body_html", "category",
		"importance_score", "urgency", "is_breaking", "status", "unique_hash", "trace_id",
		"rejection_reason", "entities", "keywords", "published_url", "published_at",
		"crawled_at", "retry_count", "created_at", "updated_at",
	}
}

func articleRow(id int64) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, 1, "echorouk", "https://example.com/a", "title", "content",
		"", "", "", "", "", "local_algeria",
		5, "high", false, "NEW", "hash", "trace",
		"", "{}", "{}", "", nil,
		now, 0, now, now,
	}
}

func TestListAppliesDefaultFiltersAndPagination(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	repo := New(db, cfg)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM articles").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, source_id, source_name").
		WillReturnRows(sqlmock.NewRows(articleColumns()).AddRow(articleRow(1)...))

	page, err := repo.List(context.Background(), ListFilter{SortBy: "created_at", LocalFirst: true})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsUnknownSortColumnToDefault(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	repo := New(db, cfg)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM articles").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id, source_id, source_name").
		WillReturnRows(sqlmock.NewRows(articleColumns()))

	page, err := repo.List(context.Background(), ListFilter{SortBy: "; DROP TABLE articles"})
	require.NoError(t, err)
	require.Equal(t, 0, page.Total)
}

func TestBreakingLimitsAndOrdersByCrawledAt(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	repo := New(db, cfg)

	mock.ExpectExec("UPDATE articles SET is_breaking").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, source_id, source_name").
		WillReturnRows(sqlmock.NewRows(articleColumns()).AddRow(articleRow(2)...))

	items, err := repo.Breaking(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
