package identity

// Claims are the decoded claims of a verified ID token.
type Claims map[string]any

func (c Claims) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Strings returns a claim that may be encoded as a single string or an array of strings (e.g. aud, roles).
func (c Claims) Strings(key string) []string {
	switch v := c[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		return values
	default:
		return nil
	}
}

// Identity is the authenticated user held in the session.
type Identity struct {
	Claims Claims `json:"claims"`
}

func NewIdentity(claims Claims) *Identity {
	if claims == nil {
		claims = Claims{}
	}
	return &Identity{Claims: claims}
}

// Subject prefers the Entra object id, which is stable across applications, over sub.
func (i *Identity) Subject() string {
	if oid := i.Claims.String("oid"); oid != "" {
		return oid
	}
	return i.Claims.String("sub")
}

func (i *Identity) Username() string {
	if u := i.Claims.String("preferred_username"); u != "" {
		return u
	}
	return i.Claims.String("email")
}

// Name is the display name, falling back to the username.
func (i *Identity) Name() string {
	if n := i.Claims.String("name"); n != "" {
		return n
	}
	return i.Username()
}
