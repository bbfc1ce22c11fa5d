package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/osei-labs/schoolmate-api/internal/models"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
	"github.com/osei-labs/schoolmate-api/pkg/export"
)

// Export formats accepted by the export endpoints.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportResultRepository interface {
	ListForExport(ctx context.Context, filter models.ResultFilter, limit int) ([]models.ResultDetail, int, error)
}

// ExportFile is a rendered export ready to stream to the client. Truncated
// reports that TotalRows exceeded the row cap and the file holds a partial
// listing.
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
	TotalRows   int
	Truncated   bool
}

// ExportService renders result listings as downloadable CSV or PDF files.
type ExportService struct {
	results exportResultRepository
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	maxRows int
	logger  *zap.Logger
}

// NewExportService constructs an export service. maxRows caps how many
// result rows a single export may contain.
func NewExportService(results exportResultRepository, csv *export.CSVExporter, pdf *export.PDFExporter, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ExportService{results: results, csv: csv, pdf: pdf, maxRows: maxRows, logger: logger}
}

// Results renders the filtered result listing in the requested format.
func (s *ExportService) Results(ctx context.Context, filter models.ResultFilter, format string) (*ExportFile, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	rows, total, err := s.results.ListForExport(ctx, filter, s.maxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results for export")
	}
	truncated := total > len(rows)
	if truncated {
		s.logger.Warn("export truncated", zap.Int("total", total), zap.Int("max_rows", s.maxRows))
	}

	data := buildResultsDataset(rows)
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportFile{
			Name:        fmt.Sprintf("results-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
			TotalRows:   total,
			Truncated:   truncated,
		}, nil
	default:
		subtitle := fmt.Sprintf("Generated %s, %d of %d record(s)", time.Now().UTC().Format("2 Jan 2006 15:04"), len(rows), total)
		content, err := s.pdf.Render(data, "Student Results", subtitle)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{
			Name:        fmt.Sprintf("results-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
			TotalRows:   total,
			Truncated:   truncated,
		}, nil
	}
}

func buildResultsDataset(rows []models.ResultDetail) export.Dataset {
	headers := []string{"Student", "Subject", "Class", "Term", "Class Score", "Exam Score", "Total", "Grade", "Point", "Published"}
	data := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		total := ""
		if row.Score != nil {
			total = strconv.FormatFloat(*row.Score, 'f', 2, 64)
		}
		published := "No"
		if row.IsPublished {
			published = "Yes"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student":     row.StudentName,
			"Subject":     row.SubjectName,
			"Class":       row.ClassName,
			"Term":        row.TermName,
			"Class Score": strconv.FormatFloat(row.ClassScore, 'f', 2, 64),
			"Exam Score":  strconv.FormatFloat(row.ExamScore, 'f', 2, 64),
			"Total":       total,
			"Grade":       row.Grade,
			"Point":       strconv.FormatFloat(row.GradePoint, 'f', 1, 64),
			"Published":   published,
		})
	}
	return data
}
