package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/store"
	"github.com/hrygo/smartchat/store/db/postgres"
	"github.com/hrygo/smartchat/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the default for demo and development deployments; PostgreSQL
// is for production deployments that need concurrent writers.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
