package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
	"github.com/trezcool/elimu/core/attachment"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/report"
	"github.com/trezcool/elimu/core/settings"
	"github.com/trezcool/elimu/core/user"
	emailsvc "github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/services/filestore"
	"github.com/trezcool/elimu/services/filestore/s3store"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/services/metrics"
	"github.com/trezcool/elimu/services/ratelimit"
	"github.com/trezcool/elimu/storage/database"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	"github.com/trezcool/elimu/storage/database/sqlxrepos"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Storage holds the database handle and every repository built on it.
	Storage struct {
		dig.Out
		DB            core.Transactor
		Pinger        echoapi.Pinger
		Closer        func() error `name:"dbCloser"`
		Users         user.Repository
		Courses       course.Repository
		Announcements announcement.Repository
		Settings      settings.Repository
		Messages      contact.Repository
		Reports       report.Repository
	}

	Uploads struct {
		dig.Out
		Store attachment.Store
		Dir   string `name:"uploadsDir"`
	}

	ServerParams struct {
		dig.In
		Conf            *core.Config
		Shutdown        chan error
		DB              echoapi.Pinger
		UserSvc         user.ServiceInterface
		CourseSvc       course.ServiceInterface
		AnnouncementSvc announcement.ServiceInterface
		SettingsSvc     settings.ServiceInterface
		ContactSvc      contact.ServiceInterface
		ReportSvc       report.ServiceInterface
		ResetLimiter    ratelimit.Limiter
		Validate        *validator.Validate
		Translator      ut.Translator
		Logger          core.Logger
		UploadsDir      string `name:"uploadsDir"`
	}
)

func newLogger(zl *zap.SugaredLogger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(zl *zap.SugaredLogger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.Open()
		return Storage{
			DB:            db,
			Pinger:        db,
			Closer:        func() error { return nil },
			Users:         inmemdb.NewUserRepository(db),
			Courses:       inmemdb.NewCourseRepository(db),
			Announcements: inmemdb.NewAnnouncementRepository(db),
			Settings:      inmemdb.NewSettingsRepository(db),
			Messages:      inmemdb.NewMessageRepository(db),
			Reports:       inmemdb.NewReportRepository(db),
		}
	}

	setUp := func() (*database.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		DB:            db,
		Pinger:        db,
		Closer:        db.Close,
		Users:         sqlxrepos.NewUserRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Announcements: sqlxrepos.NewAnnouncementRepository(db),
		Settings:      sqlxrepos.NewSettingsRepository(db),
		Messages:      sqlxrepos.NewMessageRepository(db),
		Reports:       sqlxrepos.NewReportRepository(db),
	}
}

func newUploads(conf *core.Config, logger core.Logger) Uploads {
	if conf.Uploads.Backend == "s3" {
		client, err := s3store.NewClient(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up s3: %v", err), err)
		}
		return Uploads{Store: s3store.New(client, conf)}
	}

	store, err := filestore.NewLocalStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads directory: %v", err), err)
	}
	return Uploads{Store: store, Dir: store.Dir()}
}

func newFileManager(store attachment.Store, db core.Transactor, logger core.Logger, conf *core.Config) *attachment.Manager {
	return attachment.NewManager(store, db, logger, conf.Uploads.MaxBytes, metrics.FileObserver{})
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newResetLimiter(conf *core.Config, logger core.Logger) ratelimit.Limiter {
	if conf.Redis.Address == "" {
		return ratelimit.NewNoop()
	}
	client, err := ratelimit.NewClient(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
	}
	return ratelimit.NewRedisLimiter(client, "password-reset", conf.RateLimit.PasswordResetMax, conf.RateLimit.PasswordResetWindow)
}

func newCourseGetter(repo course.Repository) announcement.CourseGetter {
	return repo
}

func newShutdown() chan error {
	return make(chan error, 1)
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Shutdown, &echoapi.Deps{
		DB:              p.DB,
		UserSvc:         p.UserSvc,
		CourseSvc:       p.CourseSvc,
		AnnouncementSvc: p.AnnouncementSvc,
		SettingsSvc:     p.SettingsSvc,
		ContactSvc:      p.ContactSvc,
		ReportSvc:       p.ReportSvc,
		ResetLimiter:    p.ResetLimiter,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Logger:          p.Logger,
		UploadsDir:      p.UploadsDir,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newUploads))
	must(c.Provide(newFileManager))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newResetLimiter))
	must(c.Provide(newCourseGetter))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(course.NewService, dig.As(new(course.ServiceInterface))))
	must(c.Provide(announcement.NewService, dig.As(new(announcement.ServiceInterface))))
	must(c.Provide(settings.NewService, dig.As(new(settings.ServiceInterface))))
	must(c.Provide(contact.NewService, dig.As(new(contact.ServiceInterface))))
	must(c.Provide(report.NewService, dig.As(new(report.ServiceInterface))))
	must(c.Provide(newShutdown))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
