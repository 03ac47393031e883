package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mvoronov/cafeteria-system/internal/authz"
	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
)

// Заголовки колонок выгрузки реестра заявок.
var exportHeaders = []string{
	"ID",
	"Статус",
	"Комментарий",
	"Название бенефита",
	"email пользователя",
	"ФИО пользователя",
	"email сотрудника HR",
	"ФИО сотрудника HR",
	"Время создания",
	"Время последней модификации",
}

// ExportRequests формирует xlsx-выгрузку реестра заявок. Доступно HR и
// администратору; HR видит только своё юрлицо.
func (s *Service) ExportRequests(ctx context.Context, actor model.Actor, status *model.RequestStatus, legalEntityID *int64) (*bytes.Buffer, error) {
	if !authz.CanExportRequests(actor) {
		return nil, repository.ErrPermissionDenied
	}

	f := repository.RequestFilter{
		Status:        status,
		LegalEntityID: legalEntityID,
	}
	if actor.Role == model.RoleHR {
		if actor.LegalEntityID == nil {
			return nil, repository.ErrPermissionDenied
		}
		f.LegalEntityID = actor.LegalEntityID
	}

	rows, err := s.repo.ListRequestsForExport(ctx, f)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNoRequestsToExport
	}

	return buildRequestsWorkbook(rows)
}

func buildRequestsWorkbook(rows []repository.RequestExportRow) (*bytes.Buffer, error) {
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := wb.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header cell: %w", err)
		}
	}

	for i, row := range rows {
		values := []any{
			row.ID,
			string(row.Status),
			row.Comment,
			row.BenefitName,
			row.UserEmail,
			row.UserFullname,
			row.PerformerEmail,
			row.PerformerFullname,
			row.CreatedAt.Format(time.RFC3339),
			row.UpdatedAt.Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row cell name: %w", err)
		}
		if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("set sheet row: %w", err)
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return buf, nil
}
