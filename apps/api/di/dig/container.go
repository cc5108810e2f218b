package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-connect/apps/api/echo"
	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
	emailsvc "github.com/trezcool/masomo-connect/services/email"
	logsvc "github.com/trezcool/masomo-connect/services/logger"
	queuesvc "github.com/trezcool/masomo-connect/services/queue"
	whatsappsvc "github.com/trezcool/masomo-connect/services/whatsapp"
	"github.com/trezcool/masomo-connect/storage/database"
	inmem "github.com/trezcool/masomo-connect/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-connect/storage/database/sqlx"
)

const inmemEngine = "inmem"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBParam is nil with the "inmem" engine.
	DBParam struct {
		dig.In
		DB *sqlx.DB
	}

	// Repositories are backed by PostgreSQL, or kept in memory with the "inmem" engine (DB is nil then).
	Repositories struct {
		dig.Out
		DB            *sqlx.DB
		UserRepo      user.Repository
		MessagingRepo messaging.Repository
	}

	serverParams struct {
		dig.In
		Conf         *core.Config
		Logger       core.Logger
		UserSvc      user.ServiceInterface
		MessagingSvc messaging.ServiceInterface
		Webhooks     *whatsappsvc.WebhookValidator
		Validate     *validator.Validate
		Translator   ut.Translator
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == inmemEngine {
		loggerParam.Logger.Warn("using the in-memory database: data will be lost on shutdown")
		db := inmem.Open()
		return Repositories{
			UserRepo:      inmem.NewUserRepository(db),
			MessagingRepo: inmem.NewMessagingRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.OpenX(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:            db,
		UserRepo:      sqlxrepos.NewUserRepository(db),
		MessagingRepo: sqlxrepos.NewMessagingRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newProvider(conf *core.Config, logger core.Logger) messaging.Provider {
	if conf.Debug {
		return whatsappsvc.NewConsoleProvider(logger)
	}
	return whatsappsvc.NewTwilioProvider(conf, logger)
}

func newUserService(repo user.Repository, logger core.Logger, conf *core.Config) (user.ServiceInterface, messaging.ParticipantResolver) {
	svc := user.NewService(repo, logger, conf)
	return svc, svc
}

// newDispatcher returns nil when no queue is configured: messages are then delivered inline.
func newDispatcher(conf *core.Config) (*queuesvc.AsynqDispatcher, error) {
	if conf.Queue.RedisURL == "" {
		return nil, nil
	}
	return queuesvc.NewAsynqDispatcher(conf)
}

func newMessagingService(
	repo messaging.Repository,
	provider messaging.Provider,
	resolver messaging.ParticipantResolver,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
	dispatcher *queuesvc.AsynqDispatcher,
) (*messaging.Service, messaging.ServiceInterface) {
	svc := messaging.NewService(repo, provider, resolver, mailSvc, logger, conf)
	if dispatcher != nil {
		svc.UseDispatcher(dispatcher)
	}
	return svc, svc
}

// newWorker returns nil when no queue is configured.
func newWorker(conf *core.Config, svc *messaging.Service, logger core.Logger) (*queuesvc.Worker, error) {
	if conf.Queue.RedisURL == "" {
		return nil, nil
	}
	return queuesvc.NewWorker(conf, svc, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		UserSvc:      p.UserSvc,
		MessagingSvc: p.MessagingSvc,
		Webhooks:     p.Webhooks,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newProvider))
	must(c.Provide(whatsappsvc.NewWebhookValidator))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newUserService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newMessagingService))
	must(c.Provide(newWorker))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
