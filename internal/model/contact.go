// internal/model/contact.go
package model

type Contact struct {
	ID             int    `db:"id" json:"id"`
	FirstName      string `db:"first_name" json:"first_name"`
	LastName       string `db:"last_name" json:"last_name"`
	Phone          string `db:"phone" json:"phone"`
	Email          string `db:"email" json:"email"`
	SocialHandle   string `db:"social_handle" json:"social_handle"`
	MailingAddress string `db:"mailing_address" json:"mailing_address"`
	City           string `db:"city" json:"city"`
	Timezone       string `db:"timezone" json:"timezone"` // IANA name, may be empty
}
