package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random collection for isolation
	f := &FirestoreProvider{
		projectID:  "test-project-id",
		collection: fmt.Sprintf("pricewatch-test-%d", time.Now().UnixNano()),
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	testDatabase(t, f)

	t.Run("MissingJSON", func(t *testing.T) {
		_, err := f.client.Collection(f.collection).Doc("state").Set(ctx, map[string]interface{}{
			"version": 1,
		})
		require.NoError(t, err)

		_, err = f.GetState(ctx)
		assert.ErrorContains(t, err, "missing 'json' field")
	})
}

func TestFirestoreProviderValidate(t *testing.T) {
	assert.ErrorContains(t, (&FirestoreProvider{}).Validate(), "firestore-collection is required")
}
