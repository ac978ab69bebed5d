package purchaseorder

import (
	"context"
	"fmt"
	"path"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/pkg/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName    = "Purchase Order"
	headerRow    = 7
	dataRowStart = 8
)

var lineColumns = []string{"No.", "Description", "Quantity", "Unit Price", "Discount %", "Tax Class", "Line Total"}

// WorkbookExporter writes purchase orders as xlsx files into FileStorage
type WorkbookExporter struct {
	storage port.FileStorage
	logger  *zap.Logger
}

// NewWorkbookExporter creates a new WorkbookExporter
func NewWorkbookExporter(storage port.FileStorage, logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{
		storage: storage,
		logger:  logger,
	}
}

// Export renders the order and returns the stored file's full path. Files are
// grouped by month: YYYY/MM/<order number>.xlsx
func (e *WorkbookExporter) Export(ctx context.Context, po *entity.PurchaseOrder) (string, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := e.fillHeader(file, po); err != nil {
		return "", fmt.Errorf("failed to fill header: %w", err)
	}
	lastRow, err := e.fillLines(file, po.Lines)
	if err != nil {
		return "", fmt.Errorf("failed to fill lines: %w", err)
	}
	if err := e.fillTotal(file, po, lastRow+1); err != nil {
		return "", fmt.Errorf("failed to fill total: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("failed to render workbook: %w", err)
	}

	relPath := path.Join(po.CreatedAt.Format("2006"), po.CreatedAt.Format("01"), po.OrderNumber+".xlsx")
	if err := e.storage.Save(ctx, relPath, buf.Bytes()); err != nil {
		return "", err
	}

	fullPath := e.storage.GetFullPath(relPath)
	e.logger.Info("Purchase order workbook written",
		zap.String("order_number", po.OrderNumber),
		zap.String("path", fullPath),
		zap.Int("lines", len(po.Lines)))
	return fullPath, nil
}

func (e *WorkbookExporter) fillHeader(file *excelize.File, po *entity.PurchaseOrder) error {
	vendor := po.VendorName
	if po.VendorCode != "" {
		vendor = fmt.Sprintf("%s (%s)", po.VendorName, po.VendorCode)
	}

	rows := [][2]interface{}{
		{"Purchase Order", po.OrderNumber},
		{"Requisition", po.RequisitionRef},
		{"Date", po.CreatedAt.Format("2006-01-02")},
		{"Vendor", vendor},
		{"Currency", po.Currency},
	}
	for i, row := range rows {
		r := i + 1
		if err := file.SetCellValue(sheetName, cell("A", r), row[0]); err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell("B", r), row[1]); err != nil {
			return err
		}
	}

	for i, title := range lineColumns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell(col, headerRow), title); err != nil {
			return err
		}
	}
	return nil
}

// fillLines returns the last row written.
func (e *WorkbookExporter) fillLines(file *excelize.File, lines []*entity.PurchaseOrderLine) (int, error) {
	row := headerRow
	for i, line := range lines {
		row = dataRowStart + i
		quantity, _ := line.Quantity.Float64()
		unitPrice, _ := line.UnitPrice.Float64()
		discount, _ := line.DiscountPercent.Float64()
		lineTotal, _ := line.LineTotal.Float64()

		values := []interface{}{line.LineNo, line.Description, quantity, unitPrice, discount, line.TaxClass, lineTotal}
		if err := file.SetSheetRow(sheetName, cell("A", row), &values); err != nil {
			return 0, fmt.Errorf("row %d: %w", row, err)
		}
	}
	return row, nil
}

func (e *WorkbookExporter) fillTotal(file *excelize.File, po *entity.PurchaseOrder, row int) error {
	total, _ := po.TotalAmount.Float64()
	if err := file.SetCellValue(sheetName, cell("F", row), "Total"); err != nil {
		return err
	}
	if err := file.SetCellValue(sheetName, cell("G", row), total); err != nil {
		return err
	}
	return file.SetCellValue(sheetName, cell("H", row), utils.FormatMoney(po.Currency, po.TotalAmount))
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

var _ port.DocumentExporter = (*WorkbookExporter)(nil)
