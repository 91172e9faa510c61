package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/bootstrap"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/config"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/database"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/logger"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/service"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

func main() {
	templatePath := flag.String("template", "", "Report template: a YAML path or a name in EXPORT_TEMPLATE_DIR")
	dataPath := flag.String("data", "", "JSON object of component id to rows; omit to run the template queries")
	typ := flag.String("type", "", "Export type: xlsx, xls or csv (default from EXPORT_TYPE)")
	locale := flag.String("locale", "", "Locale such as en or de (default from EXPORT_LOCALE)")
	delimiter := flag.String("delimiter", "", "CSV delimiter (default from EXPORT_CSV_DELIMITER)")
	outDir := flag.String("out", ".", "Output directory")
	name := flag.String("name", "", "Base file name (default timestamped)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Export timeout")
	flag.Parse()

	if *templatePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := bootstrap.LoadConfig(ctx); err != nil {
		log.Fatal(err)
	}
	defaults, err := bootstrap.DefaultExportOptions()
	if err != nil {
		log.Fatal(err)
	}
	opts, err := service.ParseExportOptions(*typ, *locale, *name, "", *delimiter)
	if err != nil {
		log.Fatal(err)
	}

	tmpl, err := tabexport.LoadTemplate(bootstrap.TemplatePath(*templatePath))
	if err != nil {
		log.Fatal(err)
	}

	doc, err := export(ctx, tmpl, *dataPath, defaults, opts)
	if err != nil {
		logger.ErrorLog(ctx, "Export failed: %v", err)
		os.Exit(1)
	}
	defer doc.Close()

	path := filepath.Join(*outDir, doc.FileName)
	if err := writeDocument(path, doc); err != nil {
		logger.ErrorLog(ctx, "Writing export failed: %v", err)
		os.Exit(1)
	}
	logger.InfoLog(ctx, "Wrote %s (%d bytes)", path, doc.Size())
}

func export(ctx context.Context, tmpl *tabexport.ExportConfig, dataPath string, defaults, opts service.ExportOptions) (*tabexport.Document, error) {
	if dataPath != "" {
		rows, err := readRows(dataPath)
		if err != nil {
			return nil, err
		}
		return service.NewReportService(nil, defaults).ExportTemplate(ctx, tmpl, rows, opts)
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:            config.DefaultEnvConfig.DB_HOST,
		Port:            config.DefaultEnvConfig.DB_PORT,
		User:            config.DefaultEnvConfig.DB_USER,
		Password:        config.DefaultEnvConfig.DB_PASSWORD,
		DBName:          config.DefaultEnvConfig.DB_NAME,
		SSLMode:         config.DefaultEnvConfig.DB_SSL_MODE,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: config.DefaultEnvConfig.DB_CONN_MAX_LIFETIME,
	})
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return service.NewReportService(nil, defaults, service.WithQueryDB(db)).ExportQuery(ctx, tmpl, opts)
}

func readRows(path string) (map[string][]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows map[string][]map[string]interface{}
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func writeDocument(path string, doc *tabexport.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
