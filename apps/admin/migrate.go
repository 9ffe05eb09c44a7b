package main

import (
	"context"

	"github.com/trezcool/remindme/storage/database"
)

var runMigrationFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	return runMigrationFunc(context.Background(), cli.db, args[0], args[1:]...)
}
