package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-erp/core"
	"github.com/trezcool/masomo-erp/core/marks"
	emailsvc "github.com/trezcool/masomo-erp/services/email"
	logsvc "github.com/trezcool/masomo-erp/services/logger"
	sqlxrepos "github.com/trezcool/masomo-erp/storage/database/sqlx"
)

var std *log.Logger

func main() {
	std = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	db, err := openDB(conf, os.Args)
	errAndDie(err)
	defer func() { _ = db.Close() }()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	repo := sqlxrepos.NewMarksRepository(sqlx.NewDb(db, "postgres"))
	cli := commandLine{
		db:      db,
		conf:    conf,
		svc:     marks.NewService(repo, logger, core.NewValidator()),
		mailSvc: mailSvc,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %+v\n", err)
		}
		logger.Close()
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		std.Fatal(err)
	}
}
