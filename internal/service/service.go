// Package service реализует бизнес-логику кафетерия льгот.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvoronov/cafeteria-system/internal/authz"
	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNoRequestsToExport возвращается, если под фильтры выгрузки не попала ни одна заявка.
var ErrNoRequestsToExport = errors.New("no benefit requests found for export")

// ErrInvalidStatus возвращается при неизвестном статусе заявки в запросе на обновление.
var ErrInvalidStatus = errors.New("invalid request status")

const sessionTTL = 30 * 24 * time.Hour

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSessionUser(ctx context.Context, token string) (*model.User, error)
	DeleteSession(ctx context.Context, token string) error

	CreateBenefit(ctx context.Context, b *model.Benefit) (int64, error)
	GetBenefitByID(ctx context.Context, id int64) (*model.Benefit, error)
	ListBenefits(ctx context.Context) ([]model.Benefit, error)
	UpdateBenefit(ctx context.Context, id int64, upd repository.BenefitUpdate) (*model.Benefit, error)
	DeleteBenefit(ctx context.Context, id int64) error

	CreateBenefitRequest(ctx context.Context, userID, benefitID int64, content string) (*model.BenefitRequest, error)
	GetBenefitRequest(ctx context.Context, id int64) (*model.BenefitRequest, error)
	ListBenefitRequests(ctx context.Context, f repository.RequestFilter) ([]model.BenefitRequest, error)
	ListRequestsForExport(ctx context.Context, f repository.RequestFilter) ([]repository.RequestExportRow, error)
	UpdateBenefitRequest(ctx context.Context, id int64, upd model.RequestUpdate, actor model.Actor) (*model.BenefitRequest, error)
	DeleteBenefitRequest(ctx context.Context, id int64) error
}

// Notifier отправляет уведомления о событиях с заявками. Вызывается после
// коммита транзакции; ошибки отправки не влияют на результат операции.
type Notifier interface {
	SendRequestCreated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string) error
	SendRequestUpdated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string, newStatus model.RequestStatus) error
}

// Service содержит бизнес-логику кафетерия льгот.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и отправителем уведомлений.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Login проверяет email и пароль пользователя и открывает сессию.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.repo.CreateSession(ctx, token, u.ID, time.Now().Add(sessionTTL)); err != nil {
		return "", nil, err
	}

	return token, u, nil
}

// Logout закрывает сессию по токену.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// Authenticate возвращает пользователя действующей сессии.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return s.repo.GetSessionUser(ctx, token)
}

// CreateUserInput содержит данные нового пользователя.
type CreateUserInput struct {
	Email         string
	Firstname     string
	Lastname      string
	Password      string
	Role          model.UserRole
	Coins         int64
	LegalEntityID *int64
	IsAdapted     bool
	HiredAt       time.Time
}

// CreateUser создаёт пользователя. Доступно только администратору.
func (s *Service) CreateUser(ctx context.Context, actor model.Actor, in CreateUserInput) (*model.User, error) {
	if !authz.CanManageUsers(actor) {
		return nil, repository.ErrPermissionDenied
	}

	u := &model.User{
		Email:         in.Email,
		Firstname:     in.Firstname,
		Lastname:      in.Lastname,
		PasswordHash:  hashPassword(in.Email, in.Password),
		Role:          in.Role,
		Coins:         in.Coins,
		LegalEntityID: in.LegalEntityID,
		IsAdapted:     in.IsAdapted,
		HiredAt:       in.HiredAt,
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}

	return s.repo.GetUserByID(ctx, id)
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListBenefits возвращает каталог льгот.
func (s *Service) ListBenefits(ctx context.Context) ([]model.Benefit, error) {
	return s.repo.ListBenefits(ctx)
}

// GetBenefit возвращает льготу по идентификатору.
func (s *Service) GetBenefit(ctx context.Context, id int64) (*model.Benefit, error) {
	return s.repo.GetBenefitByID(ctx, id)
}

// CreateBenefit добавляет льготу в каталог. Доступно только администратору.
func (s *Service) CreateBenefit(ctx context.Context, actor model.Actor, b *model.Benefit) (*model.Benefit, error) {
	if !authz.CanManageCatalog(actor) {
		return nil, repository.ErrPermissionDenied
	}

	id, err := s.repo.CreateBenefit(ctx, b)
	if err != nil {
		return nil, err
	}

	return s.repo.GetBenefitByID(ctx, id)
}

// UpdateBenefit изменяет льготу. Доступно только администратору.
func (s *Service) UpdateBenefit(ctx context.Context, actor model.Actor, id int64, upd repository.BenefitUpdate) (*model.Benefit, error) {
	if !authz.CanManageCatalog(actor) {
		return nil, repository.ErrPermissionDenied
	}
	return s.repo.UpdateBenefit(ctx, id, upd)
}

// DeleteBenefit удаляет льготу из каталога. Доступно только администратору.
func (s *Service) DeleteBenefit(ctx context.Context, actor model.Actor, id int64) error {
	if !authz.CanManageCatalog(actor) {
		return repository.ErrPermissionDenied
	}
	return s.repo.DeleteBenefit(ctx, id)
}

// CreateRequest создаёт заявку на льготу от имени actor и после коммита
// отправляет автору уведомление.
func (s *Service) CreateRequest(ctx context.Context, actor model.Actor, benefitID int64, content string) (*model.BenefitRequest, error) {
	req, err := s.repo.CreateBenefitRequest(ctx, actor.ID, benefitID, content)
	if err != nil {
		return nil, err
	}

	s.notifyAsync(req, nil)

	return req, nil
}

// GetRequest возвращает заявку с учётом прав доступа actor.
func (s *Service) GetRequest(ctx context.Context, actor model.Actor, id int64) (*model.BenefitRequest, error) {
	req, err := s.repo.GetBenefitRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !authz.CanReadRequest(actor, req, owner.LegalEntityID) {
		return nil, repository.ErrPermissionDenied
	}

	return req, nil
}

// ListParams задаёт фильтры, сортировку и пагинацию списка заявок.
type ListParams struct {
	Status        *model.RequestStatus
	UserID        *int64
	PerformerID   *int64
	LegalEntityID *int64
	SortBy        string
	SortOrder     string
	Page          int
	Limit         int
}

// ListRequests возвращает страницу заявок в пределах видимости actor:
// сотрудник — только свои, HR — своё юрлицо, админ — без ограничений.
func (s *Service) ListRequests(ctx context.Context, actor model.Actor, p ListParams) ([]model.BenefitRequest, error) {
	scope := authz.ListScope(actor)

	if actor.Role == model.RoleHR && scope.LegalEntityID == nil {
		return nil, repository.ErrPermissionDenied
	}

	f := repository.RequestFilter{
		Status:        p.Status,
		UserID:        p.UserID,
		PerformerID:   p.PerformerID,
		LegalEntityID: p.LegalEntityID,
		SortBy:        p.SortBy,
		SortOrder:     p.SortOrder,
		Page:          p.Page,
		Limit:         p.Limit,
	}
	if scope.UserID != nil {
		f.UserID = scope.UserID
	}
	if scope.LegalEntityID != nil {
		f.LegalEntityID = scope.LegalEntityID
	}

	return s.repo.ListBenefitRequests(ctx, f)
}

// UpdateRequest выполняет переход заявки и после коммита уведомляет автора
// о смене статуса.
func (s *Service) UpdateRequest(ctx context.Context, actor model.Actor, id int64, upd model.RequestUpdate) (*model.BenefitRequest, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	req, err := s.repo.UpdateBenefitRequest(ctx, id, upd, actor)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		s.notifyAsync(req, upd.Status)
	}

	return req, nil
}

// DeleteRequest удаляет заявку, возвращая удержанные ресурсы при необходимости.
func (s *Service) DeleteRequest(ctx context.Context, actor model.Actor, id int64) error {
	if !authz.CanDeleteRequest(actor) {
		return repository.ErrPermissionDenied
	}
	return s.repo.DeleteBenefitRequest(ctx, id)
}

// notifyAsync отправляет уведомление автору заявки в фоне. Ошибки отправки
// логируются и никогда не влияют на результат бизнес-операции.
func (s *Service) notifyAsync(req *model.BenefitRequest, newStatus *model.RequestStatus) {
	if s.notifier == nil {
		return
	}

	reqCopy := *req
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		owner, err := s.repo.GetUserByID(ctx, reqCopy.UserID)
		if err != nil {
			s.logger.Warn("notification skipped: load request owner", zap.Error(err), zap.Int64("requestID", reqCopy.ID))
			return
		}

		benefit, err := s.repo.GetBenefitByID(ctx, reqCopy.BenefitID)
		if err != nil {
			s.logger.Warn("notification skipped: load benefit", zap.Error(err), zap.Int64("requestID", reqCopy.ID))
			return
		}

		if newStatus == nil {
			err = s.notifier.SendRequestCreated(ctx, owner.Email, owner.Firstname,
				benefit.ID, benefit.Name, benefit.CoinsCost, benefit.ImageURL)
		} else {
			err = s.notifier.SendRequestUpdated(ctx, owner.Email, owner.Firstname,
				benefit.ID, benefit.Name, benefit.CoinsCost, benefit.ImageURL, *newStatus)
		}
		if err != nil {
			s.logger.Warn("send notification", zap.Error(err), zap.Int64("requestID", reqCopy.ID))
		}
	}()
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}
