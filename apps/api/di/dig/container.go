package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/fee"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	emailsvc "github.com/mwalefaith2021/jjschool/services/email"
	logsvc "github.com/mwalefaith2021/jjschool/services/logger"
	metricsvc "github.com/mwalefaith2021/jjschool/services/metrics"
	"github.com/mwalefaith2021/jjschool/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "API", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, "DB", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) *database.Store {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnTimeout)
	defer cancel()

	store, err := database.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

func newEmailService(conf *core.Config, logger core.Logger, metrics *metricsvc.Metrics) *emailsvc.Service {
	svc, err := emailsvc.NewService(conf, logger, metrics)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email service: %v", err), err)
	}
	logger.Info("email backend ready", map[string]interface{}{"backend": svc.Backend()})
	return svc
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// services

func newUserService(store *database.Store, mailSvc core.EmailService, conf *core.Config) *user.Service {
	return user.NewService(store.Users, mailSvc, conf)
}

func newSignupService(store *database.Store, usrSvc *user.Service, mailSvc core.EmailService, conf *core.Config) *signup.Service {
	return signup.NewService(store.Signups, store.Admissions, usrSvc, mailSvc, conf)
}

func newAdmissionService(store *database.Store, signupSvc *signup.Service, mailSvc core.EmailService, conf *core.Config) *admission.Service {
	return admission.NewService(store.Admissions, signupSvc, mailSvc, conf)
}

func newPaymentService(store *database.Store, usrSvc *user.Service, mailSvc core.EmailService) *payment.Service {
	return payment.NewService(store.Payments, usrSvc, mailSvc)
}

func newFeeService(store *database.Store, usrSvc *user.Service) *fee.Service {
	return fee.NewService(store.Fees, usrSvc)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(metricsvc.New))
	must(c.Provide(newEmailService))
	must(c.Provide(func(svc *emailsvc.Service) core.EmailService { return svc }))
	must(c.Provide(func(svc *emailsvc.Service) core.DeliveryLog { return svc }))
	must(c.Provide(newValidator))
	must(c.Provide(newTranslator))
	must(c.Provide(newUserService))
	must(c.Provide(newSignupService))
	must(c.Provide(newAdmissionService))
	must(c.Provide(newPaymentService))
	must(c.Provide(newFeeService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
