package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalife/blister/internal/platform/spreadsheet"
)

var historyExportColumns = []spreadsheet.Column{
	{Header: "Patient", Width: 30},
	{Header: "Previous Billing Date", Width: 22},
	{Header: "New Billing Date", Width: 18},
	{Header: "Next Schedule Date", Width: 20},
	{Header: "Cycled At", Width: 22},
}

// ExportHistory renders cycle history, newest first, as an XLSX workbook.
// A nil patientID exports every patient.
func (s *Service) ExportHistory(ctx context.Context, patientID *uuid.UUID) ([]byte, error) {
	if patientID != nil {
		if _, err := s.patients.GetByID(ctx, *patientID); err != nil {
			return nil, storageErr(err)
		}
	}
	records, err := s.history.All(ctx, patientID)
	if err != nil {
		return nil, storageErr(err)
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.PatientName,
			rec.PreviousBillingDate.String(),
			rec.NewBillingDate.String(),
			rec.NewNextScheduleDate.String(),
			rec.CycledAt.In(s.loc).Format("2006-01-02 15:04:05"),
		})
	}
	return spreadsheet.Build(spreadsheet.Sheet{
		Name:    "Cycle History",
		Columns: historyExportColumns,
		Rows:    rows,
	})
}

// ExportFilename names the download for the given day.
func ExportFilename(at time.Time) string {
	return "blister-history-" + at.Format("20060102") + ".xlsx"
}
