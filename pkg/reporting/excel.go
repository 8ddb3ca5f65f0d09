// Package reporting writes operator-triggered session exports. The export
// is a one-shot report of the current in-memory state; nothing here is ever
// read back by the client.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cyrus123live/btc-trading/internal/account"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

// SessionReport is everything the export captures
type SessionReport struct {
	Symbol    string
	Candles   []types.Candle
	Snapshot  *account.Snapshot
	LastOrder *types.Order
}

// WriteSessionXLSX writes the report as an Excel workbook with a candle
// sheet and a summary sheet.
func WriteSessionXLSX(report SessionReport, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const candlesSheet = "Candles"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), candlesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}

	if err := writeCandlesSheet(fx, candlesSheet, report.Candles, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, summarySheet, report, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func writeCandlesSheet(fx *excelize.File, sheet string, candles []types.Candle, headerStyle int) error {
	headers := []string{"Time", "Open", "High", "Low", "Close", "Volume"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, c := range candles {
		row := i + 2
		values := []interface{}{
			time.Unix(c.Time, 0).UTC().Format("2006-01-02 15:04:05"),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return fx.SetColWidth(sheet, "A", "A", 20)
}

func writeSummarySheet(fx *excelize.File, sheet string, report SessionReport, headerStyle int) error {
	rows := [][2]interface{}{
		{"Symbol", report.Symbol},
		{"Exported", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Bars", len(report.Candles)},
	}

	if report.Snapshot != nil {
		if pos, ok := report.Snapshot.Primary(); ok {
			rows = append(rows,
				[2]interface{}{"Position Size", pos.Size},
				[2]interface{}{"Avg Cost", pos.AvgCost},
				[2]interface{}{"Unrealized PnL", pos.UnrealizedPnL},
				[2]interface{}{"Market Value", pos.MarketValue},
			)
		} else {
			rows = append(rows, [2]interface{}{"Position", "flat"})
		}
		rows = append(rows,
			[2]interface{}{"Net Liquidation", report.Snapshot.Account.NetLiquidation},
			[2]interface{}{"Available Funds", report.Snapshot.Account.AvailableFunds},
			[2]interface{}{"Buying Power", report.Snapshot.Account.BuyingPower},
			[2]interface{}{"Margin Used", report.Snapshot.Account.MarginUsed},
		)
	}

	if report.LastOrder != nil {
		rows = append(rows,
			[2]interface{}{"Last Order ID", report.LastOrder.OrderID},
			[2]interface{}{"Last Order Side", string(report.LastOrder.Side)},
			[2]interface{}{"Last Order Qty", report.LastOrder.Quantity},
			[2]interface{}{"Last Order Status", report.LastOrder.Status},
		)
	}

	for i, kv := range rows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := fx.SetCellValue(sheet, keyCell, kv[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valCell, kv[1]); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, keyCell, keyCell, headerStyle)
	}

	return fx.SetColWidth(sheet, "A", "B", 20)
}
