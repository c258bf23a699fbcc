package booking

import (
	"bytes"
	"context"
	"fmt"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/google/uuid"
)

const exportSheet = "Appointments"

var exportHeaders = map[string]string{
	"A1": "Date",
	"B1": "Time",
	"C1": "Status",
	"D1": "Patient",
	"E1": "Email",
	"F1": "Rating",
	"G1": "Comment",
}

// ExportForDoctor renders the doctor's appointments as an .xlsx workbook.
func (s *Service) ExportForDoctor(ctx context.Context, doctorID, callerID uuid.UUID) (*bytes.Buffer, error) {
	appts, err := s.ListForDoctor(ctx, doctorID, callerID)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(appts)
}

func buildWorkbook(appts []*Appointment) (*bytes.Buffer, error) {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", exportSheet)
	for cell, title := range exportHeaders {
		file.SetCellValue(exportSheet, cell, title)
	}
	for i, a := range appts {
		appendAppointmentRow(file, i+2, a)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func appendAppointmentRow(file *excelize.File, row int, a *Appointment) {
	file.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), a.Date)
	file.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), a.Time)
	file.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), a.Status)
	if a.Patient != nil {
		file.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), a.Patient.Name)
		file.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), a.Patient.Email)
	}
	if a.Review != nil {
		file.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), a.Review.Rating)
		file.SetCellValue(exportSheet, fmt.Sprintf("G%d", row), a.Review.Comment)
	}
}
