package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/tutora/backend/fs"
)

// migrationsSrcDir is where `migrate create` writes new files, relative to the repository root.
const migrationsSrcDir = "fs/migrations"

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	dir := "migrations"
	if args[0] == "create" {
		goose.SetBaseFS(nil)
		dir = migrationsSrcDir
	} else {
		goose.SetBaseFS(appfs.FS)
	}
	return gooseRunFunc(args[0], cli.db, dir, args[1:]...)
}
