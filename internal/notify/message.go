// Package notify доставляет напоминания о повторных осмотрах по email (SMTP) или через HTTP-вебхук.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/mmeshcher/pettag/internal/reminder"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/reminder.html"))
	textTmpl = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/reminder.txt"))
)

// Subject возвращает тему письма-напоминания.
func Subject(r reminder.Reminder) string {
	return "Nhắc nhở: Lịch tái khám của " + r.PetName
}

// Render формирует HTML и текстовую версии письма.
func Render(r reminder.Reminder) (string, string, error) {
	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, r); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&text, r); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return html.String(), text.String(), nil
}
