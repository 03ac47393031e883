package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
)

func TestExportRequests_EmployeeDenied(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 1, Role: model.RoleEmployee}
	_, err := svc.ExportRequests(context.Background(), actor, nil, nil)
	if !errors.Is(err, repository.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestExportRequests_HRScopedToLegalEntity(t *testing.T) {
	repo := &stubRepo{
		exportRows: []repository.RequestExportRow{
			{ID: 1, Status: model.StatusPending, BenefitName: "ДМС", UserEmail: "user@corp.ru"},
		},
	}
	svc := newTestService(repo, nil)

	actor := model.Actor{ID: 2, Role: model.RoleHR, LegalEntityID: ptr(10)}
	_, err := svc.ExportRequests(context.Background(), actor, nil, ptr(99))
	if err != nil {
		t.Fatalf("export requests: %v", err)
	}

	if repo.listFilter.LegalEntityID == nil || *repo.listFilter.LegalEntityID != 10 {
		t.Fatalf("hr export must be scoped to own legal entity, got %v", repo.listFilter.LegalEntityID)
	}
}

func TestExportRequests_EmptyResult(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 3, Role: model.RoleAdmin}
	_, err := svc.ExportRequests(context.Background(), actor, nil, nil)
	if !errors.Is(err, ErrNoRequestsToExport) {
		t.Fatalf("expected ErrNoRequestsToExport, got %v", err)
	}
}

func TestExportRequests_BuildsWorkbook(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubRepo{
		exportRows: []repository.RequestExportRow{
			{
				ID:                1,
				Status:            model.StatusApproved,
				Comment:           "выдано",
				BenefitName:       "ДМС",
				UserEmail:         "user@corp.ru",
				UserFullname:      "Иванов Иван",
				PerformerEmail:    "hr@corp.ru",
				PerformerFullname: "Петрова Анна",
				CreatedAt:         now,
				UpdatedAt:         now,
			},
		},
	}
	svc := newTestService(repo, nil)

	actor := model.Actor{ID: 3, Role: model.RoleAdmin}
	buf, err := svc.ExportRequests(context.Background(), actor, nil, nil)
	if err != nil {
		t.Fatalf("export requests: %v", err)
	}

	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)

	header, err := wb.GetCellValue(sheet, "B1")
	if err != nil {
		t.Fatalf("get header cell: %v", err)
	}
	if header != "Статус" {
		t.Fatalf("header B1 = %q, want %q", header, "Статус")
	}

	status, err := wb.GetCellValue(sheet, "B2")
	if err != nil {
		t.Fatalf("get status cell: %v", err)
	}
	if status != "approved" {
		t.Fatalf("status B2 = %q, want %q", status, "approved")
	}

	email, err := wb.GetCellValue(sheet, "E2")
	if err != nil {
		t.Fatalf("get email cell: %v", err)
	}
	if email != "user@corp.ru" {
		t.Fatalf("email E2 = %q, want %q", email, "user@corp.ru")
	}
}
