package models

import "time"

// Domain models matching the database schema in db/migrations/<dialect>/0001_init.sql

type Feedback struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email" db:"email"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	IPAddress *string   `json:"ip_address" db:"ip_address"`
	UserAgent *string   `json:"user_agent" db:"user_agent"`
}

type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FeedbackInput is the client-supplied part of a feedback record. Server
// assigned fields (id, timestamp, ip_address, user_agent) have no place here.
type FeedbackInput struct {
	Name    string `json:"name" validate:"min=1,max=100"`
	Email   string `json:"email" validate:"omitempty,email"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"min=1,max=500"`
}

// EmailOrNil maps the empty email to an absent one.
func (in FeedbackInput) EmailOrNil() *string {
	if in.Email == "" {
		return nil
	}
	e := in.Email
	return &e
}

// FeedbackPatch is a partial update. A nil field is left unchanged; an Email
// pointing at "" clears the stored email.
type FeedbackPatch struct {
	Name    *string
	Email   *string
	Rating  *int
	Comment *string
}

func (p FeedbackPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Rating == nil && p.Comment == nil
}

// ApplyTo merges the patch onto f.
func (p FeedbackPatch) ApplyTo(f *Feedback) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Email != nil {
		if *p.Email == "" {
			f.Email = nil
		} else {
			e := *p.Email
			f.Email = &e
		}
	}
	if p.Rating != nil {
		f.Rating = *p.Rating
	}
	if p.Comment != nil {
		f.Comment = *p.Comment
	}
}

type UserInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
