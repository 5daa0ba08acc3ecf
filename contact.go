package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/config"
)

var errMailNotConfigured = errors.New("SMTP credentials not configured")

type mailer interface {
	Send(name, email, message string) error
}

type smtpMailer struct {
	cfg config.SMTP
}

func (m smtpMailer) Send(name, email, message string) error {
	if !m.cfg.Configured() {
		return errMailNotConfigured
	}

	subject := fmt.Sprintf("Portfolio Contact: %s", name)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, name, email, message)

	msg := []byte("To: " + m.cfg.ToEmail + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + m.cfg.User + "\r\n" +
		"Reply-To: " + email + "\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := smtp.SendMail(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.User, []string{m.cfg.ToEmail}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Handle contact form submission with HTMX. Messages are stored first so a
// mail outage never loses one.
func (s *server) contact(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("fullName"))
	email := strings.TrimSpace(c.PostForm("email"))
	message := strings.TrimSpace(c.PostForm("message"))

	if name == "" || message == "" || strings.ContainsAny(name, "\r\n") {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Please fill in your name, email and a message.",
		})
		return
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "That email address doesn't look right.",
		})
		return
	}

	log := s.logger.WithField("email_hash", s.store.Anonymize(email))
	id, err := s.store.SaveMessage(c.Request.Context(), name, email, message)
	if err != nil {
		log.WithError(err).Error("could not store contact message")
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}

	switch err := s.mailer.Send(name, email, message); {
	case errors.Is(err, errMailNotConfigured):
		log.Warn("SMTP not configured, contact message stored only")
	case err != nil:
		log.WithError(err).Error("error sending contact email")
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	default:
		if err := s.store.MarkDelivered(c.Request.Context(), id); err != nil {
			log.WithError(err).Warn("could not mark message delivered")
		}
		log.Info("contact email sent")
	}

	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}
