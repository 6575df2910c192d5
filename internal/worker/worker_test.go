package worker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/events"
	"github.com/geraldfingburke/editorial-core/internal/models"
)

func TestDispatchRejectsUnknownJobType(t *testing.T) {
	p := New(nil, config.Default(), events.NewBus(), Agents{}, zerolog.Nop())
	_, err := p.dispatch(context.Background(), &models.JobRun{ID: "1", JobType: "not_a_real_type", EntityID: "1"})
	require.Error(t, err)
}

func TestParseEntityIDRejectsNonNumeric(t *testing.T) {
	_, err := parseEntityID("auto_pipeline")
	require.Error(t, err)
}

func TestParseEntityIDParsesArticleID(t *testing.T) {
	id, err := parseEntityID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}
