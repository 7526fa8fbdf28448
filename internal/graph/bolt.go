package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// boltRunner executes Cypher over a Bolt connection.
type boltRunner struct {
	driver neo4j.DriverWithContext
}

// NewStore connects to the graph endpoint, verifies it answers, and ensures
// the schema. uri is a bolt:// or neo4j:// URI.
func NewStore(ctx context.Context, uri, username, password string, opts Options) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, sqerrors.UnavailableError("graph", "create graph driver", err).
			WithDetail("uri", uri)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, sqerrors.UnavailableError("graph", "graph endpoint unreachable", err).
			WithDetail("uri", uri).
			WithSuggestion("check that the graph database is running on the configured port")
	}

	store := newStore(&boltRunner{driver: driver}, opts)
	if err := store.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return store, nil
}

func (r *boltRunner) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	for result.Next(ctx) {
		records = append(records, result.Record().AsMap())
	}
	return records, result.Err()
}

func (r *boltRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
