package editorial

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

func TestCanTransitionAllowsKnownEdges(t *testing.T) {
	assert.True(t, CanTransition(models.StatusNew, models.StatusCandidate))
	assert.True(t, CanTransition(models.StatusApprovedHandoff, models.StatusDraftGenerated))
	assert.True(t, CanTransition(models.StatusPublished, models.StatusApproved))
}

func TestCanTransitionRejectsUnknownEdges(t *testing.T) {
	assert.False(t, CanTransition(models.StatusNew, models.StatusPublished))
	assert.False(t, CanTransition(models.StatusDraftGenerated, models.StatusRejected))
}

func TestReadabilityReportFlagsLongSentences(t *testing.T) {
	longSentence := ""
	for i := 0; i < 40; i++ {
		longSentence += "كلمة "
	}
	report := ReadabilityReport(longSentence + ".")
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.BlockingReasons)
}

func TestReadabilityReportPassesShortClean(t *testing.T) {
	text := "أعلنت الحكومة اليوم عن خطة جديدة. لكن الوزير أكد أن التنفيذ سيكون تدريجيا. من جهة أخرى رحب النواب بالقرار."
	report := ReadabilityReport(text)
	assert.True(t, report.Passed)
	assert.GreaterOrEqual(t, report.Score, 0)
}

func TestTechnicalAuditFlagsMissingSEOTitle(t *testing.T) {
	a := &models.Article{BodyHTML: "<h1>t</h1><p>نص قصير</p>", OriginalURL: "https://example.com/a/slug-1"}
	report := TechnicalAudit(a, "example.com")
	assert.False(t, report.Passed)
	assert.Contains(t, report.BlockingReasons, "SEO Title مفقود")
}

func TestSlugFromURL(t *testing.T) {
	assert.Equal(t, "my-article", slugFromURL("https://example.com/news/my-article"))
	assert.Equal(t, "", slugFromURL(""))
}

func TestUpdateDraftRejectsVersionMismatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "article_id", "status", "version"}).AddRow(1, 10, "draft", 2)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, article_id, status, version FROM editorial_drafts`).WillReturnRows(rows)
	mock.ExpectRollback()

	svc := New(db, zerolog.Nop())
	err = svc.UpdateDraft(context.Background(), 1, 1, "t", "b", "editor")
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestUpdateDraftRejectsNonDraftStatus(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "article_id", "status", "version"}).AddRow(1, 10, "applied", 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, article_id, status, version FROM editorial_drafts`).WillReturnRows(rows)
	mock.ExpectRollback()

	svc := New(db, zerolog.Nop())
	err = svc.UpdateDraft(context.Background(), 1, 1, "t", "b", "editor")
	require.ErrorIs(t, err, ErrDraftNotEditable)
}

func TestApplyDraftReturnsAlreadyAppliedOnUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "article_id", "status", "version", "title", "body"}).
		AddRow(2, 10, "draft", 1, "headline", "<p>body</p>")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, article_id, status, version, title, body FROM editorial_drafts`).WillReturnRows(rows)
	mock.ExpectExec(`UPDATE editorial_drafts SET status = 'applied'`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "idx_drafts_one_active_per_article"})
	mock.ExpectRollback()

	svc := New(db, zerolog.Nop())
	err = svc.ApplyDraft(context.Background(), 2, "editor")
	require.ErrorIs(t, err, ErrAlreadyApplied)
	require.NoError(t, mock.ExpectationsWereMet())
}
