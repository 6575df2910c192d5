// Package graphqlapi exposes the operations of internal/httpapi, except the
// health check, the SSE event stream and draft archiving, through a
// graphql-go schema, mirroring the teacher's graphql.go: one
// object type per domain model, resolvers closing over *sql.DB and the
// core services, wired into a single handler.Handler.
package graphqlapi

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"github.com/geraldfingburke/editorial-core/internal/articles"
	"github.com/geraldfingburke/editorial-core/internal/editorial"
	"github.com/geraldfingburke/editorial-core/internal/models"
	"github.com/geraldfingburke/editorial-core/internal/orchestrator"
	"github.com/geraldfingburke/editorial-core/internal/queue"
)

// Deps bundles the services the schema's resolvers call into.
type Deps struct {
	Articles     *articles.Repository
	Queue        *queue.Queue
	Orchestrator *orchestrator.Orchestrator
	Editorial    *editorial.Service
}

// Handler builds the GraphQL HTTP handler exposing article listing, job
// status/enqueue, and editorial draft operations.
func Handler(deps Deps) (*handler.Handler, error) {
	articleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Article",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"sourceName":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"originalUrl":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"originalTitle":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"titleAr":         &graphql.Field{Type: graphql.String},
			"summary":         &graphql.Field{Type: graphql.String},
			"category":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"importanceScore": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"urgency":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"isBreaking":      &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"status":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"publishedUrl":    &graphql.Field{Type: graphql.String},
			"crawledAt":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	articlePageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ArticlePage",
		Fields: graphql.Fields{
			"items":   &graphql.Field{Type: graphql.NewList(articleType)},
			"total":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"page":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"perPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"pages":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "JobRun",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"jobType":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"entityId":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"status":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"attempt":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"error":     &graphql.Field{Type: graphql.String},
			"queuedAt":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	rootQuery := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"articles": &graphql.Field{
				Type: articlePageType,
				Args: graphql.FieldConfigArgument{
					"status":     &graphql.ArgumentConfig{Type: graphql.String},
					"category":   &graphql.ArgumentConfig{Type: graphql.String},
					"isBreaking": &graphql.ArgumentConfig{Type: graphql.Boolean},
					"search":     &graphql.ArgumentConfig{Type: graphql.String},
					"sortBy":     &graphql.ArgumentConfig{Type: graphql.String},
					"localFirst": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: true},
					"page":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"perPage":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter := articles.ListFilter{
						Status:     models.ArticleStatus(stringArg(p, "status")),
						Category:   models.ArticleCategory(stringArg(p, "category")),
						Search:     stringArg(p, "search"),
						SortBy:     stringArg(p, "sortBy"),
						LocalFirst: boolArg(p, "localFirst", true),
						Page:       intArg(p, "page", 1),
						PerPage:    intArg(p, "perPage", 20),
					}
					if v, ok := p.Args["isBreaking"].(bool); ok {
						filter.IsBreaking = &v
					}
					return deps.Articles.List(p.Context, filter)
				},
			},
			"breakingArticles": &graphql.Field{
				Type: graphql.NewList(articleType),
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Articles.Breaking(p.Context, intArg(p, "limit", 5))
				},
			},
			"job": &graphql.Field{
				Type: jobType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Queue.GetJob(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	rootMutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"enqueueJob": &graphql.Field{
				Type: jobType,
				Args: graphql.FieldConfigArgument{
					"jobType":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"entityId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"nonce":    &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					jt := queue.JobType(p.Args["jobType"].(string))
					entityID := p.Args["entityId"].(string)
					nonce, _ := p.Args["nonce"].(string)
					return deps.Orchestrator.Trigger(p.Context, jt, entityID, "", nonce)
				},
			},
			"updateDraft": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"draftId":         &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"expectedVersion": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"title":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"body":            &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"actorUsername":   &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					err := deps.Editorial.UpdateDraft(p.Context,
						int64(p.Args["draftId"].(int)),
						p.Args["expectedVersion"].(int),
						p.Args["title"].(string),
						p.Args["body"].(string),
						stringArg(p, "actorUsername"),
					)
					return err == nil, err
				},
			},
			"applyDraft": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"draftId":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"actorUsername": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					err := deps.Editorial.ApplyDraft(p.Context, int64(p.Args["draftId"].(int)), stringArg(p, "actorUsername"))
					return err == nil, err
				},
			},
			"transitionArticle": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"articleId":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"newStatus":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"decision":      &graphql.ArgumentConfig{Type: graphql.String},
					"reason":        &graphql.ArgumentConfig{Type: graphql.String},
					"actorUsername": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					err := deps.Editorial.Transition(p.Context,
						int64(p.Args["articleId"].(int)),
						models.ArticleStatus(p.Args["newStatus"].(string)),
						stringArg(p, "actorUsername"), stringArg(p, "decision"), stringArg(p, "reason"),
					)
					return err == nil, err
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: rootQuery, Mutation: rootMutation})
	if err != nil {
		return nil, fmt.Errorf("graphqlapi: build schema: %w", err)
	}

	return handler.New(&handler.Config{Schema: &schema, Pretty: true, GraphiQL: true}), nil
}

func stringArg(p graphql.ResolveParams, name string) string {
	if v, ok := p.Args[name].(string); ok {
		return v
	}
	return ""
}

func boolArg(p graphql.ResolveParams, name string, fallback bool) bool {
	if v, ok := p.Args[name].(bool); ok {
		return v
	}
	return fallback
}

func intArg(p graphql.ResolveParams, name string, fallback int) int {
	if v, ok := p.Args[name].(int); ok {
		return v
	}
	return fallback
}
