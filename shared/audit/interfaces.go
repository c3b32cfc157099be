package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// TableExporter provides access to database tables for export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	// GetTableData returns rows for a table as maps together with the column order.
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// Notifier sends export documents to admins.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// GenerateFilename creates a filename like "deskbot_2025-01.xlsx".
func GenerateFilename(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%04d-%02d.xlsx", prefix, t.Year(), int(t.Month()))
}
