package credential

import (
	"fmt"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "antigravity2api-go/internal/errors"
)

// tomlRecord is one credential table in an import document.
type tomlRecord struct {
	RefreshToken string `toml:"refresh_token"`
	AccessToken  string `toml:"access_token"`
	ExpiresIn    int64  `toml:"expires_in"`
	IssuedAt     int64  `toml:"issued_at"`
	ProjectID    string `toml:"project_id"`
	Email        string `toml:"email"`
	Disabled     bool   `toml:"disabled"`
}

// ParseTOML normalizes a pasted TOML document into credential records.
// Two layouts are accepted: an `[[accounts]]` array of tables, or a
// document whose every top-level table is one credential. Records with no
// refresh token are rejected.
func ParseTOML(data []byte) ([]*Credential, error) {
	var arrayDoc struct {
		Accounts []tomlRecord `toml:"accounts"`
	}
	if err := toml.Unmarshal(data, &arrayDoc); err == nil && len(arrayDoc.Accounts) > 0 {
		return normalizeTOML(arrayDoc.Accounts)
	}

	var tableDoc map[string]tomlRecord
	if err := toml.Unmarshal(data, &tableDoc); err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid TOML: %v", err))
	}
	names := make([]string, 0, len(tableDoc))
	for name := range tableDoc {
		names = append(names, name)
	}
	sort.Strings(names)
	records := make([]tomlRecord, 0, len(names))
	for _, name := range names {
		records = append(records, tableDoc[name])
	}
	return normalizeTOML(records)
}

func normalizeTOML(records []tomlRecord) ([]*Credential, error) {
	now := time.Now().UnixMilli()
	out := make([]*Credential, 0, len(records))
	for i, rec := range records {
		if rec.RefreshToken == "" {
			return nil, apperrors.BadRequest(fmt.Sprintf("record %d has no refresh_token", i))
		}
		out = append(out, &Credential{
			RefreshToken: rec.RefreshToken,
			AccessToken:  rec.AccessToken,
			ExpiresIn:    rec.ExpiresIn,
			IssuedAt:     rec.IssuedAt,
			ProjectID:    rec.ProjectID,
			Email:        rec.Email,
			Enabled:      !rec.Disabled,
			CreatedAt:    now,
		})
	}
	return out, nil
}
