package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/Papel-hub/talentoStore/db"
)

func TestMongoRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Every case gets its own database so state never leaks between them.
	repositoryCases(t, func(t *testing.T) Repository {
		cols, err := db.Connect(ctx, uri, "orders_"+uuid.NewString()[:8])
		require.NoError(t, err)
		t.Cleanup(func() { _ = cols.Close(context.Background()) })

		repo := NewMongoRepository(cols)
		require.NoError(t, repo.EnsureIndexes(ctx))
		return repo
	})
}
