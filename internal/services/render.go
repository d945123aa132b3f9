package services

import (
	"complywatch/internal/models"
	"fmt"
	"strings"
	"time"
)

const subjectPrefix = "[ComplyWatch]"

func renderAlert(to string, w models.Website, record models.AlertRecord) models.MailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "The compliance score of %s dropped from %d to %d (%d points).\n",
		w.URL, record.PreviousScore, record.CurrentScore, record.Delta)
	fmt.Fprintf(&b, "Severity: %s\n", record.Severity)
	fmt.Fprintf(&b, "Detected at: %s\n", record.CreatedAt.Format(time.RFC1123))

	return models.MailMessage{
		To:      to,
		Subject: fmt.Sprintf("%s %s compliance drop on %s", subjectPrefix, record.Severity, w.URL),
		Body:    b.String(),
	}
}

func renderDigest(payload *models.DigestPayload) models.MailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitoring summary from %s to %s\n\n",
		payload.Since.Format("2006-01-02"), payload.Until.Format("2006-01-02"))
	for _, w := range payload.Websites {
		fmt.Fprintf(&b, "%s\n", w.URL)
		if w.LatestScore != nil {
			fmt.Fprintf(&b, "  score: %d (%+d)\n", *w.LatestScore, w.ScoreChange)
		} else {
			b.WriteString("  score: no scan this week\n")
		}
		fmt.Fprintf(&b, "  scans: %d, alerts: %d, held back by cooldown: %d\n", w.Scans, w.Alerts, w.SuppressedAlerts)
	}

	return models.MailMessage{
		To:      payload.Email,
		Subject: fmt.Sprintf("%s Your weekly compliance summary", subjectPrefix),
		Body:    b.String(),
	}
}
