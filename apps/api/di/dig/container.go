package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/smkgaleri/galeri/apps/api/echo"
	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/akademik"
	"github.com/smkgaleri/galeri/core/penilaian"
	"github.com/smkgaleri/galeri/core/proyek"
	"github.com/smkgaleri/galeri/core/user"
	emailsvc "github.com/smkgaleri/galeri/services/email"
	logsvc "github.com/smkgaleri/galeri/services/logger"
	"github.com/smkgaleri/galeri/storage/database"
	inmemdb "github.com/smkgaleri/galeri/storage/database/inmem"
	sqlxrepos "github.com/smkgaleri/galeri/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are the storage implementations selected by Config.Storage.
type Repositories struct {
	dig.Out
	DB        *sqlx.DB // nil with memory storage
	User      user.Repository
	Akademik  akademik.Repository
	Proyek    proyek.Repository
	Penilaian penilaian.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Storage == core.StorageMemory {
		loggerParam.Logger.Warn("using in-memory storage: data is lost on restart")
		mem := inmemdb.Open()
		return Repositories{
			User:      inmemdb.NewUserRepository(mem),
			Akademik:  inmemdb.NewAkademikRepository(mem),
			Proyek:    inmemdb.NewProyekRepository(mem),
			Penilaian: inmemdb.NewPenilaianRepository(mem),
		}
	}

	setUp := func() (*sqlx.DB, error) {
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

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:        db,
		User:      sqlxrepos.NewUserRepository(db),
		Akademik:  sqlxrepos.NewAkademikRepository(db),
		Proyek:    sqlxrepos.NewProyekRepository(db),
		Penilaian: sqlxrepos.NewPenilaianRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(os.Stdout, logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

func newServerDeps(
	validate *validator.Validate,
	translator ut.Translator,
	userSvc user.ServiceInterface,
	akademikSvc *akademik.Service,
	proyekSvc *proyek.Service,
	penilaianSvc *penilaian.Service,
) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Validate:     validate,
		Translator:   translator,
		UserSvc:      userSvc,
		AkademikSvc:  akademikSvc,
		ProyekSvc:    proyekSvc,
		PenilaianSvc: penilaianSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(akademik.NewService))
	must(c.Provide(user.NewTokenGenerator))
	must(c.Provide(user.NewService))
	must(c.Provide(proyek.NewService))
	must(c.Provide(penilaian.NewService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
