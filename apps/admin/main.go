package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
	emailsvc "github.com/mwalefaith2021/jjschool/services/email"
	logsvc "github.com/mwalefaith2021/jjschool/services/logger"
	"github.com/mwalefaith2021/jjschool/storage/database"
)

func main() {
	conf := core.NewConfig()
	// migrations are run explicitly from here
	conf.Database.MigrateOnBoot = false

	logger := logsvc.NewRollbarLogger(os.Stdout, "ADMIN", conf)
	logger.Enable(!conf.Debug)

	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnTimeout)
	store, err := database.Open(ctx, conf, logger)
	cancel()
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	mailSvc, err := emailsvc.NewService(conf, logger, nil)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email service: %v", err), err)
	}

	cli := commandLine{
		conf:   conf,
		store:  store,
		usrSvc: user.NewService(store.Users, mailSvc, conf),
		logger: logger,
	}
	err = cli.run(os.Args)
	mailSvc.Wait()
	_ = store.Close(context.Background())
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
