package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/persistence/file"
	"github.com/rush86999/atom-sub011/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence layer from a database URL. The scheme
// selects the backend: postgres URLs get PostgreSQL, everything else is
// treated as a file store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
