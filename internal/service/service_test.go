package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
)

type stubRepo struct {
	user    *model.User
	userErr error

	benefit    *model.Benefit
	benefitErr error

	createdRequest *model.BenefitRequest
	createErr      error

	updatedRequest *model.BenefitRequest
	updateErr      error

	deleteErr error

	listFilter   repository.RequestFilter
	listRequests []model.BenefitRequest
	listErr      error

	exportRows []repository.RequestExportRow
	exportErr  error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return nil
}

func (s *stubRepo) GetSessionUser(ctx context.Context, token string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) DeleteSession(ctx context.Context, token string) error { return nil }

func (s *stubRepo) CreateBenefit(ctx context.Context, b *model.Benefit) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetBenefitByID(ctx context.Context, id int64) (*model.Benefit, error) {
	return s.benefit, s.benefitErr
}

func (s *stubRepo) ListBenefits(ctx context.Context) ([]model.Benefit, error) {
	return nil, nil
}

func (s *stubRepo) UpdateBenefit(ctx context.Context, id int64, upd repository.BenefitUpdate) (*model.Benefit, error) {
	return s.benefit, s.benefitErr
}

func (s *stubRepo) DeleteBenefit(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) CreateBenefitRequest(ctx context.Context, userID, benefitID int64, content string) (*model.BenefitRequest, error) {
	return s.createdRequest, s.createErr
}

func (s *stubRepo) GetBenefitRequest(ctx context.Context, id int64) (*model.BenefitRequest, error) {
	return s.createdRequest, s.createErr
}

func (s *stubRepo) ListBenefitRequests(ctx context.Context, f repository.RequestFilter) ([]model.BenefitRequest, error) {
	s.listFilter = f
	return s.listRequests, s.listErr
}

func (s *stubRepo) ListRequestsForExport(ctx context.Context, f repository.RequestFilter) ([]repository.RequestExportRow, error) {
	s.listFilter = f
	return s.exportRows, s.exportErr
}

func (s *stubRepo) UpdateBenefitRequest(ctx context.Context, id int64, upd model.RequestUpdate, actor model.Actor) (*model.BenefitRequest, error) {
	return s.updatedRequest, s.updateErr
}

func (s *stubRepo) DeleteBenefitRequest(ctx context.Context, id int64) error {
	return s.deleteErr
}

type stubNotifier struct {
	created chan string
	updated chan model.RequestStatus
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{
		created: make(chan string, 1),
		updated: make(chan model.RequestStatus, 1),
	}
}

func (n *stubNotifier) SendRequestCreated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string) error {
	n.created <- email
	return nil
}

func (n *stubNotifier) SendRequestUpdated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string, newStatus model.RequestStatus) error {
	n.updated <- newStatus
	return nil
}

func ptr(v int64) *int64 { return &v }

func newTestService(repo Repository, notifier Notifier) *Service {
	return NewService(repo, notifier, zap.NewNop())
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user@corp.ru", "pass")
	b := hashPassword("user@corp.ru", "pass")
	c := hashPassword("user@corp.ru", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestLogin_InvalidPassword(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{
			ID:           1,
			Email:        "user@corp.ru",
			PasswordHash: hashPassword("user@corp.ru", "correct"),
		},
	}
	svc := newTestService(repo, nil)

	_, _, err := svc.Login(context.Background(), "user@corp.ru", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := &stubRepo{userErr: repository.ErrUserNotFound}
	svc := newTestService(repo, nil)

	_, _, err := svc.Login(context.Background(), "ghost@corp.ru", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateRequest_PropagatesBusinessError(t *testing.T) {
	repo := &stubRepo{createErr: repository.ErrInsufficientCoins}
	svc := newTestService(repo, nil)

	actor := model.Actor{ID: 1, Role: model.RoleEmployee}
	_, err := svc.CreateRequest(context.Background(), actor, 7, "")
	if !errors.Is(err, repository.ErrInsufficientCoins) {
		t.Fatalf("expected ErrInsufficientCoins, got %v", err)
	}
}

func TestCreateRequest_NotifiesOwner(t *testing.T) {
	repo := &stubRepo{
		createdRequest: &model.BenefitRequest{ID: 100, BenefitID: 7, UserID: 1, Status: model.StatusPending},
		user:           &model.User{ID: 1, Email: "user@corp.ru", Firstname: "Иван"},
		benefit:        &model.Benefit{ID: 7, Name: "ДМС", CoinsCost: 5},
	}
	notifier := newStubNotifier()
	svc := newTestService(repo, notifier)

	actor := model.Actor{ID: 1, Role: model.RoleEmployee}
	req, err := svc.CreateRequest(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.ID != 100 {
		t.Fatalf("request id = %d, want 100", req.ID)
	}

	select {
	case email := <-notifier.created:
		if email != "user@corp.ru" {
			t.Fatalf("notified %q, want user@corp.ru", email)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("created notification was not sent")
	}
}

func TestUpdateRequest_NotifiesOnStatusChange(t *testing.T) {
	declined := model.StatusDeclined
	repo := &stubRepo{
		updatedRequest: &model.BenefitRequest{ID: 100, BenefitID: 7, UserID: 1, Status: declined},
		user:           &model.User{ID: 1, Email: "user@corp.ru", Firstname: "Иван"},
		benefit:        &model.Benefit{ID: 7, Name: "ДМС", CoinsCost: 5},
	}
	notifier := newStubNotifier()
	svc := newTestService(repo, notifier)

	actor := model.Actor{ID: 2, Role: model.RoleHR, LegalEntityID: ptr(10)}
	_, err := svc.UpdateRequest(context.Background(), actor, 100, model.RequestUpdate{Status: &declined})
	if err != nil {
		t.Fatalf("update request: %v", err)
	}

	select {
	case status := <-notifier.updated:
		if status != model.StatusDeclined {
			t.Fatalf("notified status %q, want declined", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("updated notification was not sent")
	}
}

func TestUpdateRequest_RejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	bad := model.RequestStatus("cancelled")
	actor := model.Actor{ID: 3, Role: model.RoleAdmin}
	_, err := svc.UpdateRequest(context.Background(), actor, 100, model.RequestUpdate{Status: &bad})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestDeleteRequest_EmployeeDenied(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 1, Role: model.RoleEmployee}
	err := svc.DeleteRequest(context.Background(), actor, 100)
	if !errors.Is(err, repository.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestListRequests_EmployeeScopedToSelf(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	// Попытка подсмотреть чужие заявки через фильтр игнорируется.
	actor := model.Actor{ID: 1, Role: model.RoleEmployee}
	_, err := svc.ListRequests(context.Background(), actor, ListParams{UserID: ptr(42)})
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}

	if repo.listFilter.UserID == nil || *repo.listFilter.UserID != 1 {
		t.Fatalf("employee list must be scoped to own user id, got %v", repo.listFilter.UserID)
	}
}

func TestListRequests_HRScopedToLegalEntity(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	actor := model.Actor{ID: 2, Role: model.RoleHR, LegalEntityID: ptr(10)}
	_, err := svc.ListRequests(context.Background(), actor, ListParams{LegalEntityID: ptr(99)})
	if err != nil {
		t.Fatalf("list requests: %v", err)
	}

	if repo.listFilter.LegalEntityID == nil || *repo.listFilter.LegalEntityID != 10 {
		t.Fatalf("hr list must be scoped to own legal entity, got %v", repo.listFilter.LegalEntityID)
	}
}

func TestListRequests_HRWithoutLegalEntityDenied(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 2, Role: model.RoleHR}
	_, err := svc.ListRequests(context.Background(), actor, ListParams{})
	if !errors.Is(err, repository.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCreateBenefit_RequiresAdmin(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 2, Role: model.RoleHR, LegalEntityID: ptr(10)}
	_, err := svc.CreateBenefit(context.Background(), actor, &model.Benefit{Name: "ДМС"})
	if !errors.Is(err, repository.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCreateUser_RequiresAdmin(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	actor := model.Actor{ID: 2, Role: model.RoleHR, LegalEntityID: ptr(10)}
	_, err := svc.CreateUser(context.Background(), actor, CreateUserInput{Email: "new@corp.ru"})
	if !errors.Is(err, repository.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
