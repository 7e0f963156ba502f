package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// NotificationSender delivers account security emails. Implementations are
// called from dispatcher tasks, never inline in a request.
type NotificationSender interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendLockoutAlert(ctx context.Context, email, username string, lockedUntil time.Time) error
	SendLoginAlert(ctx context.Context, email, username, ipAddress string, at time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail sends the email verification link
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	textBody := fmt.Sprintf(`Xác thực địa chỉ email của bạn

Vui lòng xác thực địa chỉ email bằng cách truy cập liên kết sau:

%s

Liên kết sẽ hết hạn lúc %s.

Nếu bạn không tạo tài khoản này, hãy bỏ qua email này.
`, link, expiresAt.Format("15:04 02/01/2006"))

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Xác thực địa chỉ email của bạn</h2>
<p>Vui lòng xác thực địa chỉ email bằng cách nhấn vào liên kết dưới đây:</p>
<p><a href="%s">Xác thực email</a></p>
<p>Liên kết sẽ hết hạn lúc %s.</p>
<p>Nếu bạn không tạo tài khoản này, hãy bỏ qua email này.</p>
</body></html>`, link, expiresAt.Format("15:04 02/01/2006"))

	return s.send(ctx, email, "Xác thực địa chỉ email", textBody, htmlBody)
}

// SendPasswordResetEmail sends the password reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)

	textBody := fmt.Sprintf(`Đặt lại mật khẩu

Chúng tôi nhận được yêu cầu đặt lại mật khẩu cho tài khoản của bạn. Truy cập liên kết sau để đặt mật khẩu mới:

%s

Liên kết sẽ hết hạn lúc %s.

Nếu bạn không yêu cầu đặt lại mật khẩu, hãy bỏ qua email này. Mật khẩu của bạn sẽ không thay đổi.
`, link, expiresAt.Format("15:04 02/01/2006"))

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Đặt lại mật khẩu</h2>
<p>Chúng tôi nhận được yêu cầu đặt lại mật khẩu cho tài khoản của bạn.</p>
<p><a href="%s">Đặt mật khẩu mới</a></p>
<p>Liên kết sẽ hết hạn lúc %s.</p>
<p>Nếu bạn không yêu cầu đặt lại mật khẩu, hãy bỏ qua email này. Mật khẩu của bạn sẽ không thay đổi.</p>
</body></html>`, link, expiresAt.Format("15:04 02/01/2006"))

	return s.send(ctx, email, "Yêu cầu đặt lại mật khẩu", textBody, htmlBody)
}

// SendLockoutAlert notifies the account owner that their account was locked
func (s *AWSSESEmailService) SendLockoutAlert(ctx context.Context, email, username string, lockedUntil time.Time) error {
	textBody := fmt.Sprintf(`Cảnh báo bảo mật

Tài khoản %s đã bị tạm khóa do đăng nhập sai nhiều lần. Tài khoản sẽ được mở khóa lúc %s.

Nếu không phải bạn thực hiện các lần đăng nhập này, vui lòng đổi mật khẩu ngay sau khi tài khoản được mở khóa.
`, username, lockedUntil.Format("15:04 02/01/2006"))

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Cảnh báo bảo mật</h2>
<p>Tài khoản <strong>%s</strong> đã bị tạm khóa do đăng nhập sai nhiều lần. Tài khoản sẽ được mở khóa lúc %s.</p>
<p>Nếu không phải bạn thực hiện các lần đăng nhập này, vui lòng đổi mật khẩu ngay sau khi tài khoản được mở khóa.</p>
</body></html>`, username, lockedUntil.Format("15:04 02/01/2006"))

	return s.send(ctx, email, "Tài khoản của bạn đã bị tạm khóa", textBody, htmlBody)
}

// SendLoginAlert notifies privileged accounts about a successful sign-in
func (s *AWSSESEmailService) SendLoginAlert(ctx context.Context, email, username, ipAddress string, at time.Time) error {
	textBody := fmt.Sprintf(`Thông báo đăng nhập

Tài khoản quản trị %s vừa đăng nhập lúc %s từ địa chỉ IP %s.

Nếu không phải bạn, vui lòng đổi mật khẩu ngay lập tức.
`, username, at.Format("15:04 02/01/2006"), ipAddress)

	htmlBody := fmt.Sprintf(`<html><body>
<h2>Thông báo đăng nhập</h2>
<p>Tài khoản quản trị <strong>%s</strong> vừa đăng nhập lúc %s từ địa chỉ IP %s.</p>
<p>Nếu không phải bạn, vui lòng đổi mật khẩu ngay lập tức.</p>
</body></html>`, username, at.Format("15:04 02/01/2006"), ipAddress)

	return s.send(ctx, email, "Đăng nhập vào tài khoản quản trị", textBody, htmlBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("subject", subject))
	return nil
}

// LogEmailService is a no-delivery fallback for environments without SES
// credentials. It logs what would have been sent.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("verification email (not sent)",
		slog.String("email", email), slog.Time("expires_at", expiresAt))
	return nil
}

func (s *LogEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("password reset email (not sent)",
		slog.String("email", email), slog.Time("expires_at", expiresAt))
	return nil
}

func (s *LogEmailService) SendLockoutAlert(ctx context.Context, email, username string, lockedUntil time.Time) error {
	s.logger.Info("lockout alert (not sent)",
		slog.String("email", email), slog.Time("locked_until", lockedUntil))
	return nil
}

func (s *LogEmailService) SendLoginAlert(ctx context.Context, email, username, ipAddress string, at time.Time) error {
	s.logger.Info("login alert (not sent)",
		slog.String("email", email), slog.String("ip_address", ipAddress))
	return nil
}
