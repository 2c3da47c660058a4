package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/daruliman/pondok/api"
	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/catalog"
	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/profitshare"
	"github.com/daruliman/pondok/core/student"
	emailsvc "github.com/daruliman/pondok/services/email"
	sendgridmail "github.com/daruliman/pondok/services/email/sendgrid"
	logsvc "github.com/daruliman/pondok/services/logger"
	"github.com/daruliman/pondok/storage/database"
	sqlxrepos "github.com/daruliman/pondok/storage/database/sqlx"
	"github.com/jmoiron/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close database", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = sendgridmail.NewSendgridService(conf, logger)
	}

	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db))
	catalogSvc := catalog.NewService(sqlxrepos.NewCatalogRepository(db))

	classifier := finance.NewClassifier(sqlxrepos.NewMappingRepository(db), logger)
	financeSvc := finance.NewService(
		sqlxrepos.NewFinanceRepository(db),
		sqlxrepos.NewStudentRepository(db),
		classifier,
		logger,
	)
	profitShareSvc := profitshare.NewService(
		sqlxrepos.NewProfitShareRepository(db),
		mailSvc,
		logger,
		conf.FoundationEmail,
	)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address(),
		Conf:           conf,
		Logger:         logger,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
		FinanceSvc:     financeSvc,
		ProfitShareSvc: profitShareSvc,
		StudentSvc:     studentSvc,
		CatalogSvc:     catalogSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
