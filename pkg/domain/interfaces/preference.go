package interfaces

import "context"

// PreferenceStore is a key value store for persisted table settings.
// Get reports false when the key is absent.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
