package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/config"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

type Sender interface {
	SendOrderConfirmation(ctx context.Context, to string, order *domain.Order) error
	SendRefundNotice(ctx context.Context, to string, order *domain.Order, reason string) error
}

type smtpSender struct {
	from     string
	password string
	host     string
	port     string
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPSender(cfg config.SMTP, logger *zap.Logger) Sender {
	return &smtpSender{
		from:     cfg.User,
		password: cfg.Password,
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   logger,
		tracer:   otel.Tracer("notification/email"),
	}
}

func (s *smtpSender) send(ctx context.Context, to, subject, body string) error {
	msg := []byte("Subject: " + subject + "\n" +
		"MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n" +
		body)

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.from, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Error sending email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)

		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}

func (s *smtpSender) SendOrderConfirmation(ctx context.Context, to string, order *domain.Order) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendOrderConfirmation")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", to),
		attribute.Int64("order_id", order.ID),
	)

	var lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "<li>%s × %d — $%d.%02d</li>",
			item.ItemTitle, item.Quantity, item.Price/100, item.Price%100)
	}

	body := fmt.Sprintf(`
		<h1>Thank you for your order! 🎉</h1>
		<p>Order #%d is confirmed.</p>
		<ul>%s</ul>
		<p>Total: $%d.%02d</p>
	`, order.ID, lines.String(), order.Total/100, order.Total%100)

	logging.Info(
		ctx,
		s.logger,
		"Sending order confirmation email",
		zap.String("to", to),
		zap.Int64("order_id", order.ID),
	)

	return s.send(ctx, to, fmt.Sprintf("Your order #%d is confirmed", order.ID), body)
}

func (s *smtpSender) SendRefundNotice(ctx context.Context, to string, order *domain.Order, reason string) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendRefundNotice")
	defer span.End()

	span.SetAttributes(
		attribute.String("to.email", to),
		attribute.Int64("order_id", order.ID),
	)

	body := fmt.Sprintf(`
		<h1>Your refund is on its way</h1>
		<p>Order #%d ($%d.%02d) has been refunded.</p>
		<p>%s</p>
	`, order.ID, order.Total/100, order.Total%100, reason)

	logging.Info(
		ctx,
		s.logger,
		"Sending refund notice email",
		zap.String("to", to),
		zap.Int64("order_id", order.ID),
	)

	return s.send(ctx, to, fmt.Sprintf("Refund for order #%d", order.ID), body)
}
