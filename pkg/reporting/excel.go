package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-risk-gate/internal/risk"
)

// ExcelReporter exports the decision audit trail to an Excel workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header   int
	accepted int
	rejected int
}

// WriteDecisionAudit writes the decision history and current status to path
func (r *ExcelReporter) WriteDecisionAudit(path string, decisions []risk.DecisionRecord, status risk.Status, portfolio risk.PortfolioRisk) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const decisionsSheet = "Decisions"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), decisionsSheet)
	fx.NewSheet(summarySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeDecisionsSheet(fx, decisionsSheet, decisions, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, status, portfolio, styles); err != nil {
		return err
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	header, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return excelStyles{}, err
	}

	accepted, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return excelStyles{}, err
	}

	rejected, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return excelStyles{}, err
	}

	return excelStyles{header: header, accepted: accepted, rejected: rejected}, nil
}

func (r *ExcelReporter) writeDecisionsSheet(fx *excelize.File, sheet string, decisions []risk.DecisionRecord, styles excelStyles) error {
	headers := []string{"Timestamp", "Symbol", "Side", "Requested Qty", "Price", "Outcome", "Adjusted Qty", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	headerRange, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", headerRange, styles.header); err != nil {
		return err
	}

	for i, d := range decisions {
		row := i + 2
		outcome := "ACCEPTED"
		style := styles.accepted
		if !d.Accepted {
			outcome = "REJECTED"
			style = styles.rejected
		}

		values := []interface{}{
			d.Timestamp.Format(time.RFC3339),
			d.Symbol,
			string(d.Side),
			d.RequestedQuantity,
			d.Price,
			outcome,
			d.AdjustedQuantity,
			string(d.Reason),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		outcomeCell, _ := excelize.CoordinatesToCellName(6, row)
		if err := fx.SetCellStyle(sheet, outcomeCell, outcomeCell, style); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "A", 22)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, status risk.Status, portfolio risk.PortfolioRisk, styles excelStyles) error {
	rows := [][2]interface{}{
		{"Trading State", status.State.String()},
		{"Risk Level", portfolio.RiskLevel.String()},
		{"Portfolio Value", status.PortfolioValue},
		{"Peak Value", status.PeakValue},
		{"Daily Start Value", status.DailyStartValue},
		{"Realized Daily PnL", status.RealizedDailyPnL},
		{"Current Drawdown", portfolio.CurrentDrawdown},
		{"Max Drawdown", portfolio.MaxDrawdown},
		{"Value at Risk", portfolio.ValueAtRisk},
		{"VaR Reliable", portfolio.VaRValid},
		{"Open Positions", portfolio.OpenPositionCount},
		{"Consecutive Losses", status.ConsecutiveLosses},
		{"Total Exposure", portfolio.TotalExposure},
		{"Unrealized PnL", portfolio.UnrealizedPnL},
		{"Sharpe Ratio", portfolio.SharpeRatio},
	}
	if status.HaltReason != "" {
		rows = append(rows, [2]interface{}{"Halt Reason", status.HaltReason})
	}

	for i, row := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := fx.SetCellValue(sheet, labelCell, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valueCell, row[1]); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, labelCell, labelCell, styles.header); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "B", 24)
}
