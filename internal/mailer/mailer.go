// Package mailer отправляет почтовые уведомления о событиях с заявками.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/mvoronov/cafeteria-system/internal/model"
)

// Mailer отправляет письма через SMTP. Отправка вызывается после коммита
// бизнес-транзакции и никогда не участвует в ней: ошибка доставки только
// логируется вызывающей стороной.
type Mailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	domain string
	logger *zap.Logger
}

// New создаёт отправителя уведомлений. Если username пуст, письма
// отправляются без аутентификации (локальный relay в тестовых стендах).
func New(addr, from, username, password, domain string, logger *zap.Logger) *Mailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &Mailer{
		addr:   addr,
		from:   from,
		auth:   auth,
		domain: domain,
		logger: logger,
	}
}

// SendRequestCreated уведомляет автора о созданной заявке.
func (m *Mailer) SendRequestCreated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string) error {
	subject := "Запрос на бенефит в кафетерии льгот"
	body := fmt.Sprintf(
		"Здравствуйте, %s!\r\n\r\n"+
			"Ваш запрос на бенефит «%s» (стоимость: %d коинов) принят и ожидает рассмотрения.\r\n"+
			"Бенефит: https://%s/main/benefits/%d\r\n"+
			"Ваши запросы: https://%s/main/history\r\n",
		firstname, benefitName, price, m.domain, benefitID, m.domain,
	)
	return m.send(ctx, email, subject, body)
}

// SendRequestUpdated уведомляет автора о смене статуса заявки.
func (m *Mailer) SendRequestUpdated(ctx context.Context, email, firstname string, benefitID int64, benefitName string, price int64, imageURL string, newStatus model.RequestStatus) error {
	subject := "Смена статуса запроса в кафетерии льгот"
	body := fmt.Sprintf(
		"Здравствуйте, %s!\r\n\r\n"+
			"Статус вашего запроса на бенефит «%s» (стоимость: %d коинов) изменён: %s.\r\n"+
			"Бенефит: https://%s/main/benefits/%d\r\n"+
			"Ваши запросы: https://%s/main/history\r\n",
		firstname, benefitName, price, newStatus, m.domain, benefitID, m.domain,
	)
	return m.send(ctx, email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.from, to, subject, body,
	)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	m.logger.Debug("notification sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
