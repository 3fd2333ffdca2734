package main

import (
	"log"
	"os"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
	emailsvc "github.com/smkgaleri/galeri/services/email"
	logsvc "github.com/smkgaleri/galeri/services/logger"
	"github.com/smkgaleri/galeri/storage/database"
	sqlxrepos "github.com/smkgaleri/galeri/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		runMigration: func(command string, args ...string) error {
			return gooseRunFunc(db.DB, command, args...)
		},
		usrSvc: user.NewService(
			sqlxrepos.NewUserRepository(db),
			sqlxrepos.NewAkademikRepository(db),
			emailsvc.NewConsoleService(os.Stdout, logger, conf),
			user.NewTokenGenerator(conf),
		),
		validate: validate,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
