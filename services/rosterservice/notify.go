package rosterservice

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"rosteriq-backend/lib/roster"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

// Notifier tells a pilot their roster changed since it was last fetched.
type Notifier interface {
	NotifyChange(ctx context.Context, recipient string, change Change) error
}

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

type EmailNotifier struct {
	Smtp SmtpConfig
}

func NewEmailNotifier(config SmtpConfig) EmailNotifier {
	return EmailNotifier{Smtp: config}
}

func dutyTable(title string, duties []roster.Duty) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Date", "Type", "Pairing", "Route", "Start", "End"})
	for _, d := range duties {
		var route []string
		for _, leg := range d.Legs {
			route = append(route, leg.From+"-"+leg.To)
		}
		t.AppendRow(table.Row{d.Date, d.Type, d.Pairing, strings.Join(route, " "), d.Start, d.End})
	}
	return t.Render()
}

func changeBody(change Change) string {
	var body strings.Builder
	fmt.Fprintf(
		&body, "Your roster for %s %d changed since it was last checked.\n\n",
		change.Key.Month, change.Key.Year,
	)
	if len(change.Added) > 0 {
		body.WriteString(dutyTable("Added", change.Added))
		body.WriteString("\n\n")
	}
	if len(change.Removed) > 0 {
		body.WriteString(dutyTable("Removed", change.Removed))
		body.WriteString("\n\n")
	}
	if len(change.Added) == 0 && len(change.Removed) == 0 {
		body.WriteString("Times or details of existing duties were updated.\n")
	}
	return body.String()
}

func (n EmailNotifier) NotifyChange(ctx context.Context, recipient string, change Change) error {
	ctx, span := tracer.Start(ctx, "notify:NotifyChange")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("RosterIQ <%s>", n.Smtp.EmailAddress)
	mail.To = []string{recipient}
	mail.Subject = fmt.Sprintf("Roster change for %s %d", change.Key.Month, change.Key.Year)
	mail.Text = []byte(changeBody(change))

	addr := fmt.Sprintf("%s:%d", n.Smtp.Server, n.Smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.Smtp.EmailAddress, n.Smtp.Password, n.Smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
