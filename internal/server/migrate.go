package server

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/mohammad-safakhou/newsrag/index"
)

const DefaultMigrationsDir = "file://migrations"

// CheckMigrationTarget rejects configurations the bundled migrations do not
// describe: they create index.DefaultCollection with index.DefaultDimensions.
// Other layouts are created at start-up by the pgvector gateway instead.
func CheckMigrationTarget(collection string, dimensions int) error {
	if collection != index.DefaultCollection || dimensions != index.DefaultDimensions {
		return fmt.Errorf("migrations create %s vector(%d); configured %s vector(%d) is created on serve instead",
			index.DefaultCollection, index.DefaultDimensions, collection, dimensions)
	}
	return nil
}

// Migrate applies the pgvector schema migrations from dir to the database at dsn.
// steps 0 applies every pending migration in direction.
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	if steps < 0 {
		return fmt.Errorf("steps cannot be negative: %d", steps)
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("unknown direction: %s", direction)
	}

	m, err := migrate.New(dir, dsn)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	switch {
	case direction == "up" && steps > 0:
		err = m.Steps(steps)
	case direction == "up":
		err = m.Up()
	case steps > 0:
		err = m.Steps(-steps)
	default:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
