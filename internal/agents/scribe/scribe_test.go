package scribe

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWriteRejectsArticleInWrongStatus(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "source_name", "original_title", "original_content", "title_ar", "summary", "category", "status"}).
		AddRow(1, "Echorouk", "Title", "Content", "", "", "politics", "NEW")
	mock.ExpectQuery(`SELECT id, source_name, original_title`).WillReturnRows(rows)

	a := New(db, nil, zerolog.Nop())
	_, err = a.Write(context.Background(), 1, "", "")
	require.Error(t, err)
}

func TestTruncateRespectsMax(t *testing.T) {
	s := "الجزائر اليوم"
	out := truncate(s, 3)
	require.Equal(t, []rune(s)[:3], []rune(out))
}

func TestFirstNonEmptyPicksFirstNonBlank(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
}

func TestNewWorkIDFormat(t *testing.T) {
	id := newWorkID()
	require.Regexp(t, `^WRK-\d{8}-[A-Z0-9]{10}$`, id)
}
