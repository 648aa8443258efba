package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const breakLabel = "BREAK"

type timetableDetailLoader interface {
	Get(ctx context.Context, id string) (*dto.TimetableDetail, error)
}

type labelResolver interface {
	Labels(ctx context.Context, kind repository.ReferenceKind, ids []string) (map[string]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, opts export.PDFOptions) ([]byte, error)
}

// ExportResult is a rendered document ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a timetable as a printable period × weekday grid.
type ExportService struct {
	timetables timetableDetailLoader
	labels     labelResolver
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(timetables timetableDetailLoader, labels labelResolver, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{timetables: timetables, labels: labels, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the timetable in the requested format.
func (s *ExportService) Export(ctx context.Context, timetableID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, singleFieldError("format", "oneof", "format must be csv or pdf")
	}

	detail, err := s.timetables.Get(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	names, err := s.resolveLabels(ctx, detail)
	if err != nil {
		return nil, err
	}
	dataset := buildGrid(detail, names)

	base := fmt.Sprintf("timetable-%s", detail.Timetable.ID)
	switch format {
	case ExportFormatPDF:
		body, err := s.pdf.Render(dataset, export.PDFOptions{
			Title:    s.title(detail, names),
			Subtitle: fmt.Sprintf("%s - %s", labelOr(names.years, detail.Timetable.AcademicYearID), detail.Timetable.Status),
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	}
}

// gridLabels holds display names per reference kind.
type gridLabels struct {
	subjects map[string]string
	teachers map[string]string
	rooms    map[string]string
	classes  map[string]string
	years    map[string]string
}

func (s *ExportService) resolveLabels(ctx context.Context, detail *dto.TimetableDetail) (gridLabels, error) {
	var subjects, teachers, rooms []string
	for _, day := range detail.Days {
		for _, cell := range day.Periods {
			if cell.Slot == nil {
				continue
			}
			subjects = append(subjects, cell.Slot.SubjectID)
			teachers = append(teachers, cell.Slot.TeacherID)
			if cell.Slot.HasRoom() {
				rooms = append(rooms, cell.Slot.Room())
			}
		}
	}

	var labels gridLabels
	if s.labels == nil {
		return labels, nil
	}
	lookups := []struct {
		kind repository.ReferenceKind
		ids  []string
		dest *map[string]string
	}{
		{repository.ReferenceSubject, subjects, &labels.subjects},
		{repository.ReferenceTeacher, teachers, &labels.teachers},
		{repository.ReferenceRoom, rooms, &labels.rooms},
		{repository.ReferenceClassSection, []string{detail.Timetable.ClassSectionID}, &labels.classes},
		{repository.ReferenceAcademicYear, []string{detail.Timetable.AcademicYearID}, &labels.years},
	}
	for _, lookup := range lookups {
		resolved, err := s.labels.Labels(ctx, lookup.kind, unique(lookup.ids))
		if err != nil {
			return labels, appErrors.Storage(err, "failed to resolve labels")
		}
		*lookup.dest = resolved
	}
	return labels, nil
}

func (s *ExportService) title(detail *dto.TimetableDetail, names gridLabels) string {
	return fmt.Sprintf("%s - %s", labelOr(names.classes, detail.Timetable.ClassSectionID), detail.Timetable.Name)
}

// buildGrid lays the timetable out with one row per period and one column per enabled weekday.
func buildGrid(detail *dto.TimetableDetail, names gridLabels) export.Dataset {
	headers := []string{"Period"}
	var days []dto.DayDetail
	for _, day := range detail.Days {
		if !day.Day.Enabled {
			continue
		}
		days = append(days, day)
		headers = append(headers, day.Day.Weekday.String())
	}

	rows := make([]map[string]string, 0, len(detail.Periods))
	for i, period := range detail.Periods {
		row := map[string]string{"Period": fmt.Sprintf("%s (%s)", period.Name, period.Interval())}
		for _, day := range days {
			header := day.Day.Weekday.String()
			if period.IsBreak {
				row[header] = breakLabel
				continue
			}
			if i < len(day.Periods) && day.Periods[i].Slot != nil {
				row[header] = cellText(*day.Periods[i].Slot, names)
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func cellText(slot models.Slot, names gridLabels) string {
	lines := []string{
		labelOr(names.subjects, slot.SubjectID),
		labelOr(names.teachers, slot.TeacherID),
	}
	if slot.HasRoom() {
		lines = append(lines, labelOr(names.rooms, slot.Room()))
	}
	return strings.Join(lines, "\n")
}

func labelOr(labels map[string]string, id string) string {
	if label, ok := labels[id]; ok && label != "" {
		return label
	}
	return id
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
