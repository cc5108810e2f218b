package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/storage/database"
	inmem "github.com/trezcool/masomo-connect/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-connect/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	messaging.InitValidators(validate, translator)

	cli := commandLine{
		validate:  validate,
		defaultCC: conf.Messaging.DefaultCountryCode,
	}

	if conf.Database.Engine == "inmem" {
		logger.Println("using the in-memory database: changes will be lost")
		db := inmem.Open()
		cli.usrRepo = inmem.NewUserRepository(db)
		cli.msgRepo = inmem.NewMessagingRepository(db)
	} else {
		// set up DB
		db, err := database.OpenX(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()

		cli.db = db.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
		cli.msgRepo = sqlxrepos.NewMessagingRepository(db)
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
