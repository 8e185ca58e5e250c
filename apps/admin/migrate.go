package main

import (
	"database/sql"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations    // mockable
	createDBFunc = database.CreateIfNotExist // mockable
	openDBFunc   = database.Open             // mockable
)

// openDB opens the app database. `migrate` first creates the app user and database when missing.
func openDB(conf *core.Config, args []string) (*sql.DB, error) {
	if len(args) > 1 && args[1] == "migrate" {
		if err := createDBFunc(conf); err != nil {
			return nil, err
		}
	}
	return openDBFunc(conf)
}

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		return errHelp
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
