package fingerprint

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/geraldfingburke/editorial-core/internal/models"
)

const (
	duplicateVariantThreshold = 0.84
	clusterJoinThreshold      = 0.68
	relationThreshold         = 0.70
	sharedEntityMinimum       = 2
	clusterWindow             = 48 * time.Hour
)

// ClassifyOutcome describes what Classify decided for one article.
type ClassifyOutcome string

const (
	OutcomeDuplicateVariant ClassifyOutcome = "duplicate_variant"
	OutcomeJoinedCluster    ClassifyOutcome = "joined_cluster"
	OutcomeNewCluster       ClassifyOutcome = "new_cluster"
	OutcomeSingleton        ClassifyOutcome = "singleton"
)

// ClassifyResult is the outcome of running Classify for one article.
type ClassifyResult struct {
	Outcome      ClassifyOutcome
	ClusterID    int64
	MatchedWith  int64 // article ID the decision was based on, 0 if none
	BestScore    float64
}

type candidate struct {
	articleID int64
	clusterID sql.NullInt64
	simHash   int64
	shingles  models.StringArray
	entities  models.StringArray
}

// Classify computes where articleID belongs relative to articles fingerprinted
// within the trailing 48-hour clustering window (spec §4.2): a score >= 0.84
// against any candidate marks it a duplicate_variant; a score >= 0.68, OR at
// least two shared entities, joins (or creates) a story cluster; otherwise
// the article stands alone as its own singleton cluster.
func Classify(ctx context.Context, db *sql.DB, article *models.Article, fp Fingerprint, now time.Time) (ClassifyResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.id, scm.cluster_id, f.sim_hash, f.shingles, a.entities
		FROM articles a
		JOIN article_fingerprints f ON f.article_id = a.id
		LEFT JOIN story_cluster_members scm ON scm.article_id = a.id
		WHERE a.id != $1 AND a.crawled_at >= $2
		ORDER BY a.crawled_at DESC
		LIMIT 500`, article.ID, now.Add(-clusterWindow))
	if err != nil {
		return ClassifyResult{}, fmt.Errorf("fingerprint: query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.articleID, &c.clusterID, &c.simHash, &c.shingles, &c.entities); err != nil {
			return ClassifyResult{}, fmt.Errorf("fingerprint: scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return ClassifyResult{}, fmt.Errorf("fingerprint: iterate candidates: %w", err)
	}

	var best candidate
	bestScore := -1.0
	bestSharedEntities := 0
	for _, c := range candidates {
		candFP := Fingerprint{SimHash: c.simHash, Shingles: []string(c.shingles)}
		_, _, score := Similarity(fp, candFP)
		shared := sharedCount([]string(article.Entities), []string(c.entities))
		if score > bestScore {
			bestScore = score
			best = c
			bestSharedEntities = shared
		}
	}

	if len(candidates) == 0 || bestScore < 0 {
		clusterID, err := createCluster(ctx, db, article, now)
		if err != nil {
			return ClassifyResult{}, err
		}
		return ClassifyResult{Outcome: OutcomeSingleton, ClusterID: clusterID}, nil
	}

	switch {
	case bestScore >= duplicateVariantThreshold:
		clusterID, err := joinOrCreateCluster(ctx, db, article, best, now)
		if err != nil {
			return ClassifyResult{}, err
		}
		if err := upsertRelation(ctx, db, article.ID, best.articleID, models.RelationDuplicateVariant, bestScore, now); err != nil {
			return ClassifyResult{}, err
		}
		return ClassifyResult{Outcome: OutcomeDuplicateVariant, ClusterID: clusterID, MatchedWith: best.articleID, BestScore: bestScore}, nil

	case bestScore >= clusterJoinThreshold || bestSharedEntities >= sharedEntityMinimum:
		clusterID, err := joinOrCreateCluster(ctx, db, article, best, now)
		if err != nil {
			return ClassifyResult{}, err
		}
		outcome := OutcomeJoinedCluster
		if !best.clusterID.Valid {
			outcome = OutcomeNewCluster
		}
		return ClassifyResult{Outcome: outcome, ClusterID: clusterID, MatchedWith: best.articleID, BestScore: bestScore}, nil

	default:
		clusterID, err := createCluster(ctx, db, article, now)
		if err != nil {
			return ClassifyResult{}, err
		}
		return ClassifyResult{Outcome: OutcomeSingleton, ClusterID: clusterID, BestScore: bestScore}, nil
	}
}

func sharedCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, e := range a {
		set[e] = true
	}
	n := 0
	for _, e := range b {
		if set[e] {
			n++
		}
	}
	return n
}

func clusterKey(article *models.Article, now time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", article.OriginalTitle, article.ID, now.UnixNano())))
	return hex.EncodeToString(sum[:])[:32]
}

func createCluster(ctx context.Context, db *sql.DB, article *models.Article, now time.Time) (int64, error) {
	var clusterID int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO story_clusters (cluster_key, label, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id`, clusterKey(article, now), article.OriginalTitle, article.Category, now).Scan(&clusterID)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: create cluster: %w", err)
	}
	if err := addMember(ctx, db, clusterID, article.ID, 1.0, now); err != nil {
		return 0, err
	}
	return clusterID, nil
}

// joinOrCreateCluster joins the cluster the best match already belongs to,
// or creates one seeded with both articles if the match has none yet.
func joinOrCreateCluster(ctx context.Context, db *sql.DB, article *models.Article, best candidate, now time.Time) (int64, error) {
	if best.clusterID.Valid {
		if err := addMember(ctx, db, best.clusterID.Int64, article.ID, 1.0, now); err != nil {
			return 0, err
		}
		return best.clusterID.Int64, nil
	}
	clusterID, err := createCluster(ctx, db, article, now)
	if err != nil {
		return 0, err
	}
	if err := addMember(ctx, db, clusterID, best.articleID, 1.0, now); err != nil {
		return 0, err
	}
	return clusterID, nil
}

func addMember(ctx context.Context, db *sql.DB, clusterID, articleID int64, score float64, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO story_cluster_members (cluster_id, article_id, score, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cluster_id, article_id) DO UPDATE SET score = EXCLUDED.score`,
		clusterID, articleID, score, now)
	if err != nil {
		return fmt.Errorf("fingerprint: add cluster member: %w", err)
	}
	return nil
}

// upsertRelation records (or idempotently strengthens) a directed relation
// edge, keeping the maximum score ever observed between the pair.
func upsertRelation(ctx context.Context, db *sql.DB, from, to int64, relType models.RelationType, score float64, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO article_relations (from_article_id, to_article_id, relation_type, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (from_article_id, to_article_id, relation_type)
		DO UPDATE SET score = GREATEST(article_relations.score, EXCLUDED.score), updated_at = EXCLUDED.updated_at`,
		from, to, relType, score, now)
	if err != nil {
		return fmt.Errorf("fingerprint: upsert relation: %w", err)
	}
	return nil
}

// InferRelation classifies the relationship between two already-clustered
// articles once their similarity score clears 0.70, from article fields
// alone: b crawled after a, within the cluster window and in the same
// category, is a sequence; otherwise a differing importance score in the
// same category is an impact; otherwise a differing urgency is a contrast;
// everything else is related. No entities or terms in the texts are
// compared. The update is idempotent — calling
// it again with a new score only ever raises the stored score.
func InferRelation(ctx context.Context, db *sql.DB, a, b *models.Article, score float64, now time.Time) (models.RelationType, error) {
	if score < relationThreshold {
		return "", nil
	}

	relType := classifyRelationType(a, b)
	if err := upsertRelation(ctx, db, a.ID, b.ID, relType, score, now); err != nil {
		return "", err
	}
	return relType, nil
}

func classifyRelationType(a, b *models.Article) models.RelationType {
	switch {
	case a.CrawledAt.Before(b.CrawledAt) && b.CrawledAt.Sub(a.CrawledAt) < clusterWindow && a.Category == b.Category:
		return models.RelationSequence
	case a.ImportanceScore != b.ImportanceScore && a.Category == b.Category:
		return models.RelationImpact
	case a.Urgency != b.Urgency:
		return models.RelationContrast
	default:
		return models.RelationRelated
	}
}
