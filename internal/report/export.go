// Package report builds the back office exports and dashboard figures.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"pharmacy_system/internal/domain"

	"github.com/xuri/excelize/v2"
)

var medicineHeader = []string{
	"ID", "Medicine Name", "Brand", "Type", "Age Group", "Category",
	"Price", "Discount (%)", "Discounted Price", "Stock",
}

// MedicinesCSV writes the inventory as CSV
func MedicinesCSV(w io.Writer, meds []domain.Medicine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(medicineHeader); err != nil {
		return err
	}
	for _, m := range meds {
		row := []string{
			strconv.FormatUint(uint64(m.ID), 10),
			m.MedicineName,
			m.Name,
			m.Type,
			m.AgeGroup,
			m.Category,
			m.Price.StringFixed(2),
			strconv.Itoa(m.Discount),
			m.DiscountedPrice().StringFixed(2),
			strconv.Itoa(m.Stock),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const prescriptionSheet = "Prescriptions"

var prescriptionHeader = []any{"ID", "Patient", "Doctor", "Medicine", "Dosage", "Status", "Date"}

// PrescriptionsXLSX writes the prescription register as a workbook
func PrescriptionsXLSX(w io.Writer, list []domain.Prescription) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", prescriptionSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(prescriptionSheet, "A1", &prescriptionHeader); err != nil {
		return err
	}
	for i, p := range list {
		patient, doctor := "N/A", "N/A"
		if p.User != nil {
			patient = p.User.Email
		}
		if p.Doctor != nil {
			doctor = p.Doctor.Email
		}
		row := []any{p.ID, patient, doctor, orNA(p.Medicine), orNA(p.Dosage), string(p.Status), p.SubmittedAt.Format("2006-01-02")}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(prescriptionSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(prescriptionSheet, "B", "C", 28); err != nil {
		return err
	}
	return f.Write(w)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
