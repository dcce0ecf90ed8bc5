package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore. Each
// record is a document holding a "json" string and a "version" number.
type FirestoreProvider struct {
	client     *firestore.Client
	projectID  string
	database   string
	collection string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	collection := lflag.String("firestore-collection", "pricewatch", "Firestore collection holding the state and settings documents")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.collection = *collection

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// project ID may be empty and detected from the environment
	if f.collection == "" {
		return fmt.Errorf("firestore-collection is required")
	}
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// getDoc returns the json payload and version of the named document. A
// missing document returns a nil payload.
func (f *FirestoreProvider) getDoc(ctx context.Context, name string) ([]byte, int, error) {
	doc, err := f.client.Collection(f.collection).Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to fetch %s doc: %w", name, err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("doc", name))
		return nil, 0, fmt.Errorf("%w: %s document missing 'json' field: %w", ErrCorrupt, name, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("doc", name))
		return nil, 0, fmt.Errorf("%s 'json' field is not a string", name)
	}
	return []byte(jsonStr), version, nil
}

func (f *FirestoreProvider) setDoc(ctx context.Context, name string, b []byte, version int) error {
	_, err := f.client.Collection(f.collection).Doc(name).Set(ctx, map[string]interface{}{
		"json":    string(b),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s doc: %w", name, err)
	}
	return nil
}

// GetState retrieves the state from the "state" document.
func (f *FirestoreProvider) GetState(ctx context.Context) (types.State, error) {
	b, _, err := f.getDoc(ctx, "state")
	if err != nil || b == nil {
		return types.State{}, err
	}
	return unmarshalState(b)
}

// SetState saves the state to the "state" document.
func (f *FirestoreProvider) SetState(ctx context.Context, state types.State) error {
	b, err := marshalState(state)
	if err != nil {
		return err
	}
	return f.setDoc(ctx, "state", b, 0)
}

// GetSettings retrieves the settings from the "settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	b, version, err := f.getDoc(ctx, "settings")
	if err != nil || b == nil {
		return types.Settings{}, 0, err
	}
	s, err := unmarshalSettingsBody(b)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal settings json", slog.Any("err", err))
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the settings to the "settings" document. The settings are
// stored as a JSON string for portability and the version as its own field.
func (f *FirestoreProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	b, err := marshalSettingsBody(settings)
	if err != nil {
		return err
	}
	return f.setDoc(ctx, "settings", b, version)
}
