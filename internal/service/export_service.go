package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/export"
)

type exporter interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a fully rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService turns reports into CSV or PDF files.
type ExportService struct {
	exporters map[models.ReportFormat]exporter
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewExportService wires the CSV writer for the excel format and the PDF writer.
func NewExportService(metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		exporters: map[models.ReportFormat]exporter{
			models.ReportFormatExcel: export.NewCSVExporter(),
			models.ReportFormatPDF:   export.NewPDFExporter(),
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Render produces the whole file in memory so nothing is streamed on failure.
func (s *ExportService) Render(report *Report, format models.ReportFormat) (*ExportFile, error) {
	writer, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.ErrUnsupportedFormat
	}
	data, err := report.Dataset()
	if err != nil {
		s.metrics.RecordExport(string(report.Type), string(format), false)
		return nil, err
	}
	payload, err := writer.Render(data)
	if err != nil {
		s.metrics.RecordExport(string(report.Type), string(format), false)
		s.logger.Error("export render failed",
			zap.String("report", string(report.Type)),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.metrics.RecordExport(string(report.Type), string(format), true)
	return &ExportFile{
		Filename:    report.Filename(writer.Extension()),
		ContentType: writer.ContentType(),
		Payload:     payload,
	}, nil
}
