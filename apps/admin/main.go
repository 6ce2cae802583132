package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/logger"
	"github.com/tutora/backend/storage/cache"
	"github.com/tutora/backend/storage/database"
	sqlxrepos "github.com/tutora/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	stSvc := student.NewService(
		sqlxrepos.NewStudentRepository(db),
		cache.NewMemoryStudentCache(conf.Redis.StudentCacheTTL, 0),
		logger,
	)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		stSvc:    stSvc,
		clsSvc:   class.NewService(sqlxrepos.NewClassRepository(db), stSvc, logger),
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
