package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/employee_management_sample/exportgateway/internal/domain"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/logger"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/service"
	"github.com/locvowork/employee_management_sample/exportgateway/internal/service/serviceutils"
	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

// ReportExporter is the part of service.ReportService the handler needs.
type ReportExporter interface {
	ExportDepartmentReport(ctx context.Context, filter domain.EmployeeFilter, opts service.ExportOptions) (*tabexport.Document, error)
	ExportEmployees(ctx context.Context, filter domain.EmployeeFilter, opts service.ExportOptions) (*tabexport.Document, error)
	ExportEmployeeSearch(ctx context.Context, query string, opts service.ExportOptions) (*tabexport.Document, error)
	ExportProductInfo(ctx context.Context, brand string, opts service.ExportOptions) (*tabexport.Document, error)
	ExportTemplate(ctx context.Context, tmpl *tabexport.ExportConfig, rows map[string][]map[string]interface{}, opts service.ExportOptions) (*tabexport.Document, error)
	ExportQuery(ctx context.Context, tmpl *tabexport.ExportConfig, opts service.ExportOptions) (*tabexport.Document, error)
}

type ExportHandler struct {
	svc ReportExporter
}

func NewExportHandler(svc ReportExporter) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// Register mounts the export routes on g.
func (h *ExportHandler) Register(g *echo.Group) {
	g.GET("/departments", h.DepartmentsHandler)
	g.GET("/employees", h.EmployeesHandler)
	g.GET("/employees/search", h.EmployeeSearchHandler)
	g.GET("/products", h.ProductsHandler)
	g.POST("/template", h.TemplateHandler)
	g.POST("/query", h.QueryHandler)
}

// TemplateRequest carries an inline YAML template and, for template
// exports, the rows of each component keyed by component id.
type TemplateRequest struct {
	Template string                              `json:"template"`
	Rows     map[string][]map[string]interface{} `json:"rows"`
}

func exportOptions(c echo.Context) (service.ExportOptions, error) {
	return service.ParseExportOptions(
		c.QueryParam("type"),
		c.QueryParam("locale"),
		c.QueryParam("name"),
		c.QueryParam("generated_by"),
		c.QueryParam("delimiter"),
	)
}

func employeeFilter(c echo.Context) (domain.EmployeeFilter, error) {
	f := domain.EmployeeFilter{Gender: c.QueryParam("gender")}
	var err error
	if v := c.QueryParam("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid limit: %w", err)
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("invalid offset: %w", err)
		}
	}
	if v := c.QueryParam("hired_after"); v != "" {
		if f.HiredAfter, err = time.Parse("2006-01-02", v); err != nil {
			return f, fmt.Errorf("invalid hired_after: %w", err)
		}
	}
	if v := c.QueryParam("hired_before"); v != "" {
		if f.HiredBefore, err = time.Parse("2006-01-02", v); err != nil {
			return f, fmt.Errorf("invalid hired_before: %w", err)
		}
	}
	return f, nil
}

func (h *ExportHandler) DepartmentsHandler(c echo.Context) error {
	opts, err := exportOptions(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid export options", err)
	}
	filter, err := employeeFilter(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid employee filter", err)
	}

	doc, err := h.svc.ExportDepartmentReport(c.Request().Context(), filter, opts)
	if err != nil {
		return exportError(c, "Failed to export department report", err)
	}
	return sendDocument(c, doc)
}

func (h *ExportHandler) EmployeesHandler(c echo.Context) error {
	opts, err := exportOptions(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid export options", err)
	}
	filter, err := employeeFilter(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid employee filter", err)
	}

	doc, err := h.svc.ExportEmployees(c.Request().Context(), filter, opts)
	if err != nil {
		return exportError(c, "Failed to export employees", err)
	}
	return sendDocument(c, doc)
}

func (h *ExportHandler) EmployeeSearchHandler(c echo.Context) error {
	opts, err := exportOptions(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid export options", err)
	}

	doc, err := h.svc.ExportEmployeeSearch(c.Request().Context(), c.QueryParam("q"), opts)
	if err != nil {
		return exportError(c, "Failed to export employee search", err)
	}
	return sendDocument(c, doc)
}

func (h *ExportHandler) ProductsHandler(c echo.Context) error {
	brand := c.QueryParam("brand")
	if brand == "" {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Brand is required", nil)
	}
	opts, err := exportOptions(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid export options", err)
	}

	doc, err := h.svc.ExportProductInfo(c.Request().Context(), brand, opts)
	if err != nil {
		return exportError(c, "Failed to export product info", err)
	}
	return sendDocument(c, doc)
}

func (h *ExportHandler) TemplateHandler(c echo.Context) error {
	req, tmpl, opts, err := bindTemplate(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid template request", err)
	}

	doc, err := h.svc.ExportTemplate(c.Request().Context(), tmpl, req.Rows, opts)
	if err != nil {
		return exportError(c, "Failed to export template", err)
	}
	return sendDocument(c, doc)
}

func (h *ExportHandler) QueryHandler(c echo.Context) error {
	_, tmpl, opts, err := bindTemplate(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid template request", err)
	}

	doc, err := h.svc.ExportQuery(c.Request().Context(), tmpl, opts)
	if err != nil {
		return exportError(c, "Failed to export query", err)
	}
	return sendDocument(c, doc)
}

func bindTemplate(c echo.Context) (TemplateRequest, *tabexport.ExportConfig, service.ExportOptions, error) {
	var req TemplateRequest
	// numbers stay json.Number so integers above 2^53 keep every digit
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, nil, service.ExportOptions{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Template == "" {
		return req, nil, service.ExportOptions{}, errors.New("template is required")
	}
	tmpl, err := tabexport.LoadTemplateFromString(req.Template)
	if err != nil {
		return req, nil, service.ExportOptions{}, err
	}
	opts, err := exportOptions(c)
	return req, tmpl, opts, err
}

func exportError(c echo.Context, message string, err error) error {
	var cfgErr *tabexport.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return serviceutils.ResponseError(c, http.StatusBadRequest, message, err)
	case errors.Is(err, service.ErrSourceUnavailable):
		return serviceutils.ResponseError(c, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return serviceutils.ResponseError(c, http.StatusGatewayTimeout, message, err)
	}
	return serviceutils.ResponseError(c, http.StatusInternalServerError, message, err)
}

func sendDocument(c echo.Context, doc *tabexport.Document) error {
	defer doc.Close()
	data, err := doc.Bytes()
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Export is no longer available", err)
	}
	logger.DebugLog(c.Request().Context(), "sending %s (%d bytes)", doc.FileName, len(data))

	header := c.Response().Header()
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	header.Set("Content-Length", strconv.Itoa(len(data)))
	return c.Blob(http.StatusOK, doc.ContentType(), data)
}
