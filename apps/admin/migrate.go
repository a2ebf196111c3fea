package main

import (
	"context"

	"github.com/mwalefaith2021/jjschool/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cli.conf.Database.ConnTimeout)
	defer cancel()
	return migrateFunc(ctx, cli.conf, args[0], args[1:]...)
}
