package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendRenewalReminder(toEmail, fullName, productName, expiresAt string, daysRemaining int) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	frontendURL := os.Getenv("FRONTEND_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendRenewalReminder(toEmail, fullName, productName, expiresAt string, daysRemaining int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Your subscription expires in %d days", daysRemaining))

	renewLink := fmt.Sprintf("%s/subscriptions", s.frontendURL)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>Your subscription to <b>%s</b> expires on <b>%s</b> (%d days from now).</p>
			<p>Renew within the next 7 days to keep your access uninterrupted. Any days
			left on your current subscription are carried over to the new one.</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Renew Now</a>
			<p>If you've already renewed, please ignore this email.</p>
		</div>
	`, fullName, productName, expiresAt, daysRemaining, renewLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send renewal reminder to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Renewal reminder sent to %s\n", toEmail)
	return nil
}
