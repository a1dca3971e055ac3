package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ContactStatus enumerates the subscription states of a contact.
type ContactStatus string

const (
	ContactSubscribed   ContactStatus = "subscribed"
	ContactPending      ContactStatus = "pending"
	ContactUnsubscribed ContactStatus = "unsubscribed"
	ContactBounced      ContactStatus = "bounced"
	ContactComplained   ContactStatus = "complained"
)

// StrictStatuses are the statuses that, once applied, must not be silently
// overwritten by a weaker incoming status during import.
func StrictStatuses() []ContactStatus {
	return []ContactStatus{ContactUnsubscribed, ContactBounced, ContactComplained}
}

// IsStrict reports whether s belongs to the strict status set.
func (s ContactStatus) IsStrict() bool {
	for _, strict := range StrictStatuses() {
		if s == strict {
			return true
		}
	}
	return false
}

// Contact represents a single CRM contact (subscriber).
type Contact struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"user_id" db:"user_id"`
	Email         string        `json:"email" db:"email"`
	EmailHash     string        `json:"-" db:"email_hash"`
	Prefix        string        `json:"prefix" db:"prefix"`
	FirstName     string        `json:"first_name" db:"first_name"`
	LastName      string        `json:"last_name" db:"last_name"`
	Status        ContactStatus `json:"status" db:"status"`
	ContactType   string        `json:"contact_type" db:"contact_type"`
	AddressLine1  string        `json:"address_line_1" db:"address_line_1"`
	AddressLine2  string        `json:"address_line_2" db:"address_line_2"`
	PostalCode    string        `json:"postal_code" db:"postal_code"`
	City          string        `json:"city" db:"city"`
	State         string        `json:"state" db:"state"`
	Country       string        `json:"country" db:"country"`
	Phone         string        `json:"phone" db:"phone"`
	Timezone      string        `json:"timezone" db:"timezone"`
	DateOfBirth   string        `json:"date_of_birth" db:"date_of_birth"`
	Source        string        `json:"source" db:"source"`
	Avatar        string        `json:"avatar" db:"avatar"`
	LifeTimeValue float64       `json:"life_time_value" db:"life_time_value"`
	TotalPoints   int           `json:"total_points" db:"total_points"`
	Latitude      float64       `json:"latitude" db:"latitude"`
	Longitude     float64       `json:"longitude" db:"longitude"`
	IP            string        `json:"ip" db:"ip"`
	LastActivity  *time.Time    `json:"last_activity" db:"last_activity"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// FullName returns the trimmed concatenation of first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Photo returns the stored avatar if present, otherwise a deterministic
// placeholder image URL keyed by the email fingerprint.
func (c *Contact) Photo() string {
	if c.Avatar != "" {
		return c.Avatar
	}
	return "https://www.gravatar.com/avatar/" + EmailFingerprint(c.Email) + "?s=128"
}

// RecomputeHash refreshes the email fingerprint. Save paths must call this
// explicitly; there is no implicit lifecycle hook.
func (c *Contact) RecomputeHash() {
	c.EmailHash = EmailFingerprint(c.Email)
}

// EmailFingerprint returns the md5 hex digest of the normalized email. It is
// the natural dedup key: two contacts are the same iff fingerprints match.
func EmailFingerprint(email string) string {
	sum := md5.Sum([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FieldMap is a loose bag of contact columns keyed by column name, as produced
// by import mapping and upsert callers.
type FieldMap map[string]string

// fillable is the set of columns callers may set through field maps.
var fillable = map[string]bool{
	"prefix":          true,
	"first_name":      true,
	"last_name":       true,
	"user_id":         true,
	"email":           true,
	"status":          true,
	"contact_type":    true,
	"address_line_1":  true,
	"address_line_2":  true,
	"postal_code":     true,
	"city":            true,
	"state":           true,
	"country":         true,
	"phone":           true,
	"timezone":        true,
	"date_of_birth":   true,
	"source":          true,
	"avatar":          true,
	"life_time_value": true,
	"total_points":    true,
	"latitude":        true,
	"longitude":       true,
	"ip":              true,
}

// OnlyFillable returns a copy of m restricted to fillable columns, dropping
// empty values.
func (m FieldMap) OnlyFillable() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		if fillable[k] && v != "" {
			out[k] = v
		}
	}
	return out
}

// ExplodeFullName splits a full_name entry into first_name and last_name.
// It is a no-op when either name part is already present. The full_name key
// never survives the call.
func (m FieldMap) ExplodeFullName() FieldMap {
	if m["first_name"] != "" || m["last_name"] != "" {
		return m
	}
	full := strings.TrimSpace(m["full_name"])
	if full == "" {
		return m
	}
	parts := strings.Fields(full)
	m["first_name"] = parts[0]
	if len(parts) > 1 {
		m["last_name"] = strings.Join(parts[1:], " ")
	}
	delete(m, "full_name")
	return m
}

// Fill applies a field map onto the contact, parsing numeric columns. Unknown
// and non-fillable keys are ignored.
func (c *Contact) Fill(m FieldMap) {
	for k, v := range m {
		if !fillable[k] {
			continue
		}
		switch k {
		case "prefix":
			c.Prefix = v
		case "first_name":
			c.FirstName = v
		case "last_name":
			c.LastName = v
		case "user_id":
			c.UserID = v
		case "email":
			c.Email = NormalizeEmail(v)
		case "status":
			c.Status = ContactStatus(v)
		case "contact_type":
			c.ContactType = v
		case "address_line_1":
			c.AddressLine1 = v
		case "address_line_2":
			c.AddressLine2 = v
		case "postal_code":
			c.PostalCode = v
		case "city":
			c.City = v
		case "state":
			c.State = v
		case "country":
			c.Country = v
		case "phone":
			c.Phone = v
		case "timezone":
			c.Timezone = v
		case "date_of_birth":
			c.DateOfBirth = v
		case "source":
			c.Source = v
		case "avatar":
			c.Avatar = v
		case "ip":
			c.IP = v
		case "life_time_value":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.LifeTimeValue = f
			}
		case "total_points":
			if n, err := strconv.Atoi(v); err == nil {
				c.TotalPoints = n
			}
		case "latitude":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Latitude = f
			}
		case "longitude":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Longitude = f
			}
		}
	}
}

// Mappables returns the static field-name to human-label catalogue used by
// import mapping UIs.
func Mappables() map[string]string {
	return map[string]string{
		"prefix":         "Name Prefix",
		"first_name":     "First Name",
		"last_name":      "Last Name",
		"full_name":      "Full Name",
		"email":          "Email",
		"timezone":       "Timezone",
		"address_line_1": "Address Line 1",
		"address_line_2": "Address Line 2",
		"city":           "City",
		"state":          "State",
		"postal_code":    "Postal Code",
		"country":        "Country",
		"ip":             "IP Address",
		"phone":          "Phone",
		"source":         "Source",
		"date_of_birth":  "Date of Birth (Y-m-d Format only)",
	}
}
