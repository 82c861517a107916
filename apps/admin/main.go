package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/content"
	logsvc "github.com/trezcool/somo/services/logger"
	"github.com/trezcool/somo/storage/database"
	inmemdb "github.com/trezcool/somo/storage/database/inmem"
	mongorepos "github.com/trezcool/somo/storage/database/mongo"
	sqlxrepos "github.com/trezcool/somo/storage/database/sqlx"
)

var (
	logger   *log.Logger
	validate = validator.New()
)

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	initValidators()

	// set up DB
	db, repo, closeDB, err := setUpDB(conf)
	errAndDie(err)

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false)

	// start CLI
	cli := commandLine{
		db:         db,
		contentSvc: content.NewService(repo, appLogger, nil),
		in:         os.Stdin,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := closeDB(); cErr != nil {
		logger.Printf("closing database: %v", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func initValidators() {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	content.RegisterValidators(validate, translator)
}

func setUpDB(conf *core.Config) (*sql.DB, content.Repository, func() error, error) {
	switch conf.Database.Engine {
	case core.EnginePostgres:
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, nil, err
		}
		return db.DB, sqlxrepos.NewDocumentRepository(db), db.Close, nil

	case core.EngineMongo:
		ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.Timeout)
		defer cancel()

		client, db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, nil, nil, err
		}
		repo, err := newMongoRepository(ctx, db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, nil, err
		}
		disconnect := func() error { return client.Disconnect(context.Background()) }
		return nil, repo, disconnect, nil

	case core.EngineMemory:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, inmemdb.NewDocumentRepository(db), func() error { return nil }, nil
	}
	return nil, nil, nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

// newMongoRepository makes sure the slug indexes exist before handing out the repository,
// so imports into a fresh database get the same uniqueness as the API.
func newMongoRepository(ctx context.Context, db *mongo.Database) (content.Repository, error) {
	if err := mongorepos.EnsureIndexes(ctx, db); err != nil {
		return nil, errors.Wrap(err, "creating mongo indexes")
	}
	return mongorepos.NewDocumentRepository(db), nil
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
