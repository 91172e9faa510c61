package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/config"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/database"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/handler"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/logger"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/repository"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/service"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

type App struct {
	Echo      *echo.Echo
	DB        *sql.DB
	Datastore *database.DatastoreClient
}

func NewApp() *App {
	return &App{
		Echo: echo.New(),
	}
}

// LoadConfig loads the environment and starts logging. A missing .env file
// is logged, not fatal.
func LoadConfig(ctx context.Context) error {
	err := config.LoadEnvConfig()
	logger.InitLogging(config.DefaultEnvConfig.LOG_FILE_PATH)
	if errors.Is(err, config.ErrNoEnvFile) {
		logger.WarnLog(ctx, "No .env file found, using environment and defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	logger.InfoLog(ctx, "Environment variables loaded successfully")
	return nil
}

// DefaultExportOptions reads the export defaults from the loaded config.
func DefaultExportOptions() (service.ExportOptions, error) {
	cfg := config.DefaultEnvConfig
	typ, err := tabexport.ParseExportType(cfg.EXPORT_TYPE)
	if err != nil {
		return service.ExportOptions{}, fmt.Errorf("EXPORT_TYPE: %w", err)
	}
	if _, err := tabexport.ParseLocale(cfg.EXPORT_LOCALE); err != nil {
		return service.ExportOptions{}, fmt.Errorf("EXPORT_LOCALE: %w", err)
	}
	delimiter, size := utf8.DecodeRuneInString(cfg.EXPORT_CSV_DELIMITER)
	if size == 0 || size != len(cfg.EXPORT_CSV_DELIMITER) {
		return service.ExportOptions{}, fmt.Errorf("EXPORT_CSV_DELIMITER must be one character, got %q", cfg.EXPORT_CSV_DELIMITER)
	}
	return service.ExportOptions{
		Type:        typ,
		Locale:      cfg.EXPORT_LOCALE,
		FileName:    cfg.EXPORT_FILE_NAME,
		GeneratedBy: cfg.EXPORT_GENERATED_BY,
		Delimiter:   delimiter,
	}, nil
}

// TemplatePath resolves a template name. Paths that exist are used as
// given; bare names are looked up in EXPORT_TEMPLATE_DIR with a .yaml
// extension added when missing.
func TemplatePath(name string) string {
	if _, err := os.Stat(name); err == nil || filepath.IsAbs(name) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".yaml"
	}
	return filepath.Join(config.DefaultEnvConfig.EXPORT_TEMPLATE_DIR, name)
}

func (a *App) Initialize(ctx context.Context) error {
	if err := LoadConfig(ctx); err != nil {
		return err
	}
	defaults, err := DefaultExportOptions()
	if err != nil {
		return err
	}

	// Initialize database connection
	dbConfig := database.Config{
		Host:            config.DefaultEnvConfig.DB_HOST,
		Port:            config.DefaultEnvConfig.DB_PORT,
		User:            config.DefaultEnvConfig.DB_USER,
		Password:        config.DefaultEnvConfig.DB_PASSWORD,
		DBName:          config.DefaultEnvConfig.DB_NAME,
		SSLMode:         config.DefaultEnvConfig.DB_SSL_MODE,
		MaxOpenConns:    config.DefaultEnvConfig.DB_MAX_OPEN_CONNS,
		MaxIdleConns:    config.DefaultEnvConfig.DB_MAX_IDLE_CONNS,
		ConnMaxLifetime: config.DefaultEnvConfig.DB_CONN_MAX_LIFETIME,
	}

	db, err := database.NewPostgresDB(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	logger.InfoLog(ctx, "Database connection established successfully")

	opts := []service.ReportServiceOption{service.WithQueryDB(db)}

	// Search and document stores are optional; their routes answer 503
	// when they are missing.
	es, err := database.NewElasticSearchClient(config.DefaultEnvConfig.ES_URL, config.DefaultEnvConfig.ES_SNIFF)
	if err != nil {
		logger.ErrorLog(ctx, "Elasticsearch unavailable, search export disabled: %v", err)
	} else {
		opts = append(opts, service.WithSearcher(es))
	}

	if projectID := config.DefaultEnvConfig.DATASTORE_PROJECT_ID; projectID != "" {
		ds, err := database.NewDatastoreClient(ctx, projectID)
		if err != nil {
			logger.ErrorLog(ctx, "Datastore unavailable, product export disabled: %v", err)
		} else {
			a.Datastore = ds
			opts = append(opts, service.WithProductStore(ds))
		}
	}

	// Initialize dependencies
	empRepo := repository.NewEmployeeRepository(db)
	reportSvc := service.NewReportService(empRepo, defaults, opts...)
	exportHandler := handler.NewExportHandler(reportSvc)

	a.RegisterMiddlewares()
	a.RegisterRoutes(exportHandler)
	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))
}

func (a *App) RegisterRoutes(exportHandler *handler.ExportHandler) {
	exportHandler.Register(a.Echo.Group("/export"))
}

func (a *App) Run() error {
	defer a.Close()
	return a.Echo.Start(":" + strconv.Itoa(config.DefaultEnvConfig.APP_PORT))
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Datastore != nil {
		a.Datastore.Close()
	}
}
