package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the audit service.
type Config struct {
	// Monthly sends a report to admins on the first day of each month.
	Monthly bool
	// BotName prefixes report filenames.
	BotName string
}

// Service exports every audited table into one workbook.
type Service struct {
	config   Config
	exporter TableExporter
	writer   func() ExcelWriter
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new audit service. notifier may be nil when only
// on-demand exports are used.
func NewService(config Config, exporter TableExporter, writerFactory func() ExcelWriter, notifier Notifier, logger zerolog.Logger) *Service {
	if config.BotName == "" {
		config.BotName = "deskbot"
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		notifier: notifier,
		logger:   logger.With().Str("component", "audit").Logger(),
		now:      time.Now,
	}
}

// Filename returns the name used for an export produced now.
func (s *Service) Filename() string {
	return GenerateFilename(s.config.BotName, s.now())
}

// Export writes the workbook to w. Tables that fail to load are skipped and logged.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		return fmt.Errorf("no tables to export")
	}

	excel := s.writer()
	defer excel.Close()

	written := 0
	for _, table := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, table)
		if err != nil {
			s.logger.Error().Err(err).Str("table", table).Msg("Failed to get table data")
			continue
		}
		if err := excel.AddSheet(table); err != nil {
			return err
		}
		if err := excel.WriteHeader(columns); err != nil {
			return fmt.Errorf("write header %s: %w", table, err)
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := excel.WriteRow(values); err != nil {
				return fmt.Errorf("write row %s: %w", table, err)
			}
		}
		written++
		s.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("Exported table")
	}

	if written == 0 {
		return fmt.Errorf("no tables exported")
	}
	if err := excel.Save(w); err != nil {
		return fmt.Errorf("save excel: %w", err)
	}
	return nil
}

// SendReport exports and hands the workbook to the notifier.
func (s *Service) SendReport(ctx context.Context, caption string) error {
	if s.notifier == nil {
		return fmt.Errorf("notifier not configured")
	}
	var buf bytes.Buffer
	if err := s.Export(ctx, &buf); err != nil {
		return err
	}
	filename := s.Filename()
	if err := s.notifier.SendDocument(ctx, filename, &buf, caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Info().Str("filename", filename).Msg("Audit report sent")
	return nil
}

// Start sends a report on the first of every month until ctx is done. It blocks.
func (s *Service) Start(ctx context.Context) {
	if !s.config.Monthly || s.notifier == nil {
		return
	}

	next := nextFirstOfMonth(s.now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.logger.Info().Time("next", next).Msg("Next audit scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.SendReport(ctx, "Monthly export "+s.config.BotName); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send audit report")
			}
			next = nextFirstOfMonth(s.now())
			timer.Reset(time.Until(next))
			s.logger.Info().Time("next", next).Msg("Next audit scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}
