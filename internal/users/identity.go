package users

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/auth"
)

const defaultProvider = "default"

// Identity links a sign-in provider account to the customer id that owns carts and
// customizations across tenants.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	CustomerID  string    `gorm:"column:customer_id;size:190;not null;index"`
	Email       string    `gorm:"column:email;size:320"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	LastTenant  string    `gorm:"column:last_tenant_id;size:190"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Identity) TableName() string {
	return "customer_identities"
}

func (i Identity) cacheKey() string {
	return i.Provider + ":" + i.Subject
}

// newIdentity seeds a row for a first sign-in; the subject doubles as the customer id.
func newIdentity(provider, subject, tenantID string, claims auth.SessionClaims, seenAt time.Time) Identity {
	return Identity{
		Provider:    provider,
		Subject:     subject,
		CustomerID:  subject,
		Email:       normalize(claims.UserEmail),
		DisplayName: normalize(claims.UserDisplayName),
		AvatarURL:   normalize(claims.UserAvatarURL),
		LastTenant:  normalize(tenantID),
		LastSeenAt:  seenAt,
	}
}

// profileChanges lists the columns whose stored values differ from fresh claims.
// Blank claims never erase what is stored.
func (i Identity) profileChanges(tenantID string, claims auth.SessionClaims, seenAt time.Time) map[string]any {
	changes := map[string]any{"last_seen_at": seenAt}
	for column, pair := range map[string][2]string{
		"email":          {i.Email, claims.UserEmail},
		"display_name":   {i.DisplayName, claims.UserDisplayName},
		"avatar_url":     {i.AvatarURL, claims.UserAvatarURL},
		"last_tenant_id": {i.LastTenant, tenantID},
	} {
		if fresh := normalize(pair[1]); fresh != "" && fresh != pair[0] {
			changes[column] = fresh
		}
	}
	return changes
}

// providerSubject splits "provider:subject" user ids; plain ids fall back to the token
// subject, then the email.
func providerSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	if raw := normalize(claims.UserID); raw != "" {
		before, after, found := strings.Cut(raw, ":")
		switch {
		case found && normalize(before) != "" && normalize(after) != "":
			provider = normalize(before)
			subject = normalize(after)
		case !found && subject == "":
			subject = raw
		}
	}
	if subject == "" {
		subject = normalize(claims.UserEmail)
	}
	return provider, subject
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
