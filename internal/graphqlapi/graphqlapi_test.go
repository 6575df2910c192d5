package graphqlapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/geraldfingburke/editorial-core/internal/articles"
	"github.com/geraldfingburke/editorial-core/internal/config"
)

func TestHandlerBuildsSchemaAndAnswersIntrospection(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h, err := Handler(Deps{Articles: articles.New(db, config.Default())})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"query": "{ __typename }"})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Query")
}
