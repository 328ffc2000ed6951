package sessions

import (
	"encoding/json"
	"strconv"
)

// Session is one authenticated browser/device context. Provenance fields
// (IPAddress, UserAgent, DeviceID) are immutable after creation; LastActivity
// is the only field mutated over the session's lifetime.
type Session struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`

	// Unix epoch milliseconds. LoginTime <= LastActivity <= now.
	LoginTime    int64 `json:"loginTime"`
	LastActivity int64 `json:"lastActivity"`

	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// fields flattens the session into the hash representation stored under
// session:<id>.
func (s *Session) fields() map[string]string {
	perms, _ := json.Marshal(s.Permissions)
	f := map[string]string{
		"userId":       s.UserID,
		"username":     s.Username,
		"email":        s.Email,
		"role":         s.Role,
		"permissions":  string(perms),
		"loginTime":    strconv.FormatInt(s.LoginTime, 10),
		"lastActivity": strconv.FormatInt(s.LastActivity, 10),
		"ipAddress":    s.IPAddress,
		"userAgent":    s.UserAgent,
	}
	if s.DeviceID != "" {
		f["deviceId"] = s.DeviceID
	}
	return f
}

// sessionFromFields rebuilds a session from its hash representation.
func sessionFromFields(f map[string]string) *Session {
	s := &Session{
		UserID:    f["userId"],
		Username:  f["username"],
		Email:     f["email"],
		Role:      f["role"],
		IPAddress: f["ipAddress"],
		UserAgent: f["userAgent"],
		DeviceID:  f["deviceId"],
	}
	if p := f["permissions"]; p != "" {
		_ = json.Unmarshal([]byte(p), &s.Permissions)
	}
	s.LoginTime, _ = strconv.ParseInt(f["loginTime"], 10, 64)
	s.LastActivity, _ = strconv.ParseInt(f["lastActivity"], 10, 64)
	return s
}

// ActivityRecord is one append-only entry of a session's activity log.
type ActivityRecord struct {
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
