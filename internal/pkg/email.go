package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

// Mailer 发信接口
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer 基于 gomail 的实现
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	return d.DialAndSend(msg)
}

// MatchRequestHTML 收到匹配请求的通知正文
func MatchRequestHTML(recipient, sender string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p><b>%s</b> has sent you a match request. Log in to accept or decline it.</p>`,
		html.EscapeString(recipient), html.EscapeString(sender))
}

// MatchAcceptedHTML 匹配成功的通知正文
func MatchAcceptedHTML(recipient, accepter string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p><b>%s</b> accepted your match request. You can now start a conversation.</p>`,
		html.EscapeString(recipient), html.EscapeString(accepter))
}
