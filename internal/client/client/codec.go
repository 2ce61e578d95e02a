package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"google.golang.org/protobuf/types/known/structpb"
)

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

func sessionFields(s *models.Session) map[string]any {
	return map[string]any{
		"subject_id":    s.SubjectID,
		"email":         s.Email,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expires_at":    float64(s.ExpiresAt),
		"token_type":    s.TokenType,
	}
}

// sessionFrom decodes the "session" member of a reply. A missing or null
// member yields nil.
func sessionFrom(reply *structpb.Struct) (*models.Session, error) {
	v, ok := reply.GetFields()["session"]
	if !ok {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("%w: session is not an object", ErrMalformedResponse)
	}
	return decodeSession(obj)
}

func decodeSession(obj *structpb.Struct) (*models.Session, error) {
	f := obj.GetFields()
	s := &models.Session{
		SubjectID:    f["subject_id"].GetStringValue(),
		Email:        f["email"].GetStringValue(),
		AccessToken:  f["access_token"].GetStringValue(),
		RefreshToken: f["refresh_token"].GetStringValue(),
		ExpiresAt:    int64(f["expires_at"].GetNumberValue()),
		TokenType:    f["token_type"].GetStringValue(),
	}
	if s.AccessToken == "" || s.SubjectID == "" {
		return nil, fmt.Errorf("%w: session without subject or access token", ErrMalformedResponse)
	}
	return s, nil
}

func profileFrom(reply *structpb.Struct) (*models.UserProfile, error) {
	obj := reply.GetFields()["profile"].GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("%w: missing profile", ErrMalformedResponse)
	}
	m := obj.AsMap()

	p := &models.UserProfile{Permissions: []string{}}
	p.ID, _ = m["id"].(string)
	p.Name, _ = m["name"].(string)
	p.Email, _ = m["email"].(string)
	p.Phone, _ = m["phone"].(string)
	p.Country, _ = m["country"].(string)

	role, _ := m["role"].(string)
	p.Role = models.Role(role)
	if !p.Role.Valid() {
		p.Role = models.RoleUser
	}
	if perms, ok := m["permissions"].([]any); ok {
		for _, x := range perms {
			if tag, ok := x.(string); ok {
				p.Permissions = append(p.Permissions, tag)
			}
		}
	}
	if joined, ok := m["joined_date"].(string); ok && joined != "" {
		t, err := parseJoined(joined)
		if err != nil {
			return nil, fmt.Errorf("%w: joined_date: %v", ErrMalformedResponse, err)
		}
		p.JoinedDate = t
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: profile without id", ErrMalformedResponse)
	}
	return p, nil
}

func recordFields(rec models.ProfileRecord) map[string]any {
	return map[string]any{
		"id":      rec.ID,
		"email":   rec.Email,
		"name":    rec.Name,
		"phone":   rec.Phone,
		"country": rec.Country,
	}
}

// eventFrom decodes one WatchSession message.
func eventFrom(msg *structpb.Struct) (models.Event, error) {
	kind := models.EventKind(msg.GetFields()["event"].GetStringValue())
	switch kind {
	case models.EventInitialSession, models.EventSignedIn, models.EventTokenRefreshed, models.EventSignedOut:
	default:
		return models.Event{}, fmt.Errorf("%w: unknown event %q", ErrMalformedResponse, kind)
	}
	s, err := sessionFrom(msg)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{Kind: kind, Session: s}, nil
}

func parseJoined(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
