package models

// MailMessage is a rendered plain-text email ready for delivery.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}
