package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

func TestClassifyZeroCandidatesCreatesSingleton(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	article := &models.Article{ID: 1, OriginalTitle: "t", Category: models.CategoryPolitics}
	fp := Fingerprint{SimHash: 12345, Shingles: []string{"a b"}}

	mock.ExpectQuery(`SELECT a.id, scm.cluster_id, f.sim_hash, f.shingles, a.entities`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cluster_id", "sim_hash", "shingles", "entities"}))
	mock.ExpectQuery(`INSERT INTO story_clusters`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`INSERT INTO story_cluster_members`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := Classify(context.Background(), db, article, fp, now)
	require.NoError(t, err)
	require.Equal(t, OutcomeSingleton, result.Outcome)
	require.Equal(t, int64(9), result.ClusterID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyScoreAtDuplicateThresholdIsDuplicateVariant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()

	// Shared SimHash (simHashScore=1.0) and a jaccard of 19/35 gives
	// score = 0.65*1 + 0.35*(19/35) = 0.84, the duplicate_variant cutoff
	// exactly.
	shared := make([]string, 19)
	for i := range shared {
		shared[i] = "shared" + string(rune('a'+i))
	}
	uniqueToArticle := make([]string, 16)
	for i := range uniqueToArticle {
		uniqueToArticle[i] = "only_article" + string(rune('a'+i))
	}
	articleShingles := append(append([]string{}, shared...), uniqueToArticle...)

	article := &models.Article{ID: 1, OriginalTitle: "t", Category: models.CategoryPolitics, Entities: models.StringArray{}}
	fp := Fingerprint{SimHash: 42, Shingles: articleShingles}

	candidateShingleLiteral := "{" + joinStrings(shared) + "}"

	mock.ExpectQuery(`SELECT a.id, scm.cluster_id, f.sim_hash, f.shingles, a.entities`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cluster_id", "sim_hash", "shingles", "entities"}).
			AddRow(int64(2), int64(7), int64(42), candidateShingleLiteral, "{}"))
	mock.ExpectExec(`INSERT INTO story_cluster_members`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO article_relations`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := Classify(context.Background(), db, article, fp, now)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicateVariant, result.Outcome)
	require.Equal(t, int64(7), result.ClusterID)
	require.Equal(t, int64(2), result.MatchedWith)
	require.InDelta(t, duplicateVariantThreshold, result.BestScore, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyClusterlessBestMatchJoinsAsNewCluster(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()

	// Shared SimHash and jaccard of 3/10 gives score = 0.65 + 0.35*0.3 =
	// 0.755 — above clusterJoinThreshold (0.68), below duplicateVariantThreshold
	// (0.84) — with the candidate unattached to any existing cluster.
	shared := []string{"s1", "s2", "s3"}
	uniqueToArticle := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	articleShingles := append(append([]string{}, shared...), uniqueToArticle...)

	article := &models.Article{ID: 1, OriginalTitle: "t", Category: models.CategoryPolitics, Entities: models.StringArray{}}
	fp := Fingerprint{SimHash: 99, Shingles: articleShingles}

	candidateShingleLiteral := "{" + joinStrings(shared) + "}"

	mock.ExpectQuery(`SELECT a.id, scm.cluster_id, f.sim_hash, f.shingles, a.entities`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cluster_id", "sim_hash", "shingles", "entities"}).
			AddRow(int64(3), nil, int64(99), candidateShingleLiteral, "{}"))
	mock.ExpectQuery(`INSERT INTO story_clusters`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(`INSERT INTO story_cluster_members`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO story_cluster_members`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := Classify(context.Background(), db, article, fp, now)
	require.NoError(t, err)
	require.Equal(t, OutcomeNewCluster, result.Outcome)
	require.Equal(t, int64(11), result.ClusterID)
	require.Equal(t, int64(3), result.MatchedWith)
	require.InDelta(t, 0.755, result.BestScore, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
