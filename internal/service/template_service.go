// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/dripleopard-backend/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// TemplateData merges contact fields with the enrollment's free-form context;
// context keys win so callers can override per enrollment.
func TemplateData(contact *model.Contact, enrollment *model.Enrollment) map[string]string {
	data := map[string]string{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"phone":      contact.Phone,
		"email":      contact.Email,
		"city":       contact.City,
	}
	for k, v := range enrollment.Context {
		data[k] = v
	}
	return data
}
