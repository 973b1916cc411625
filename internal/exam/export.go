package exam

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/halaqah/internal/scoring"
)

const cardSheet = "Exam Card"

var cardHeader = []any{"Juz", "Name", "Attempt", "Date", "Role", "Score", "Grade", "Result", "Examiner"}

// ExportCard writes the student's exam card as an .xlsx workbook.
func (s *Service) ExportCard(ctx context.Context, studentID string, w io.Writer) error {
	card, err := s.Card(ctx, studentID)
	if err != nil {
		return err
	}
	return WriteCardXLSX(card, w)
}

// WriteCardXLSX renders a card with one row per slot entry. Units with no
// completed attempt get a single placeholder row.
func WriteCardXLSX(card Card, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", cardSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(cardSheet, "A1", &cardHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, slot := range card.Slots {
		if len(slot.Attempts) == 0 {
			values := []any{slot.Unit.Number, slot.Unit.Name, "-", "", "", "", "", "", ""}
			if err := setRow(f, row, values); err != nil {
				return err
			}
			row++
			continue
		}
		for _, e := range slot.Attempts {
			role := "review"
			if e.Primary {
				role = "primary"
			}
			var score float64
			if e.Attempt.FinalScore != nil {
				score = *e.Attempt.FinalScore
			}
			result := "failed"
			if e.Attempt.Passed != nil && *e.Attempt.Passed {
				result = "passed"
			}
			values := []any{
				slot.Unit.Number,
				slot.Unit.Name,
				e.AttemptNumber,
				e.Attempt.Date.Format("2006-01-02"),
				role,
				score,
				scoring.Grade(score),
				result,
				e.Attempt.ExaminerID,
			}
			if err := setRow(f, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColWidth(cardSheet, "B", "B", float64(maxNameWidth(card)+2)); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(cardSheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

func maxNameWidth(card Card) int {
	width := len("Name")
	for _, slot := range card.Slots {
		width = max(width, len(strings.TrimSpace(slot.Unit.Name)))
	}
	return width
}
