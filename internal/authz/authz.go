// Package authz содержит правила доступа к заявкам на льготы.
//
// Все проверки — чистые функции над уже загруженными сущностями: решение
// принимается внутри той же транзакции, в которой затем выполняется переход.
package authz

import "github.com/mvoronov/cafeteria-system/internal/model"

// Scope ограничивает выборку заявок для текущего пользователя.
// Nil-поле означает отсутствие ограничения.
type Scope struct {
	UserID        *int64
	LegalEntityID *int64
}

// ListScope возвращает ограничение видимости списка заявок:
// сотрудник видит только свои, HR — своё юрлицо, админ — всё.
func ListScope(actor model.Actor) Scope {
	switch actor.Role {
	case model.RoleAdmin:
		return Scope{}
	case model.RoleHR:
		return Scope{LegalEntityID: actor.LegalEntityID}
	default:
		id := actor.ID
		return Scope{UserID: &id}
	}
}

// CanReadRequest сообщает, может ли actor читать заявку req,
// принадлежащую пользователю с юрлицом ownerLegalEntityID.
func CanReadRequest(actor model.Actor, req *model.BenefitRequest, ownerLegalEntityID *int64) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleHR:
		return actor.ID == req.UserID || sameLegalEntity(actor.LegalEntityID, ownerLegalEntityID)
	default:
		return actor.ID == req.UserID
	}
}

// CanUpdateRequest сообщает, может ли actor перевести заявку req в статус
// newStatus. Терминальность текущего статуса проверяется отдельно.
//
// Разрешены: админ — всегда; HR — если он назначенный исполнитель либо
// заявка ещё не взята в работу, и только в пределах своего юрлица;
// автор заявки — только отклонение собственной pending-заявки.
func CanUpdateRequest(actor model.Actor, req *model.BenefitRequest, ownerLegalEntityID *int64, newStatus model.RequestStatus) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}

	// Самоотклонение: автор снимает свою ещё не рассмотренную заявку.
	if actor.ID == req.UserID {
		return newStatus == model.StatusDeclined && req.Status == model.StatusPending
	}

	if actor.Role != model.RoleHR {
		return false
	}

	if !sameLegalEntity(actor.LegalEntityID, ownerLegalEntityID) {
		return false
	}

	if req.PerformerID != nil {
		return *req.PerformerID == actor.ID
	}

	return req.Status == model.StatusPending
}

// ClaimsPerformer сообщает, должен ли actor при обновлении стать
// исполнителем заявки. Клейм получает первый HR/админ, тронувший
// pending-заявку без исполнителя; самоотклонение автора клейма не создаёт.
func ClaimsPerformer(actor model.Actor, req *model.BenefitRequest) bool {
	if actor.Role != model.RoleHR && actor.Role != model.RoleAdmin {
		return false
	}
	if actor.ID == req.UserID {
		return false
	}
	return req.Status == model.StatusPending && req.PerformerID == nil
}

// CanDeleteRequest сообщает, может ли actor удалить заявку.
func CanDeleteRequest(actor model.Actor) bool {
	return actor.Role == model.RoleHR || actor.Role == model.RoleAdmin
}

// CanExportRequests сообщает, может ли actor выгружать реестр заявок.
func CanExportRequests(actor model.Actor) bool {
	return actor.Role == model.RoleHR || actor.Role == model.RoleAdmin
}

// CanManageCatalog сообщает, может ли actor изменять каталог льгот.
func CanManageCatalog(actor model.Actor) bool {
	return actor.Role == model.RoleAdmin
}

// CanManageUsers сообщает, может ли actor создавать пользователей.
func CanManageUsers(actor model.Actor) bool {
	return actor.Role == model.RoleAdmin
}

func sameLegalEntity(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}
