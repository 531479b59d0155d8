package sessions

import (
	"encoding/gob"
	"time"

	"github.com/goccy/go-json"
	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/rs/zerolog/log"
)

// Keys in the underlying session values. Identity and flow state are stored as JSON so the
// gob codec never has to know about claim value types.
const (
	keyIdentity   = "user"
	keyTokenCache = "token_cache"
	keyAuthFlow   = "auth_flow"
	keyFlashes    = "_flash"
)

const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "danger"
)

func init() {
	gob.Register(Flash{})
}

// Flash is a one-shot UI message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// AuthFlow is the state of a login that was started but whose callback has not arrived yet.
type AuthFlow struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a typed view of one browser session. It is owned by a single request; changes are
// written back by Manager.Save only when something actually changed.
type Session struct {
	raw *gsessions.Session

	identity   *identity.Identity
	tokenCache []byte
	authFlow   *AuthFlow
	newFlashes []Flash

	previousID string
	dirty      bool
}

func newSession(raw *gsessions.Session) *Session {
	s := &Session{raw: raw}

	if data, ok := raw.Values[keyIdentity].([]byte); ok {
		var id identity.Identity
		if err := json.Unmarshal(data, &id); err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable session identity")
			s.dirty = true
		} else {
			s.identity = &id
		}
	}

	if data, ok := raw.Values[keyTokenCache].([]byte); ok {
		s.tokenCache = data
	}

	if data, ok := raw.Values[keyAuthFlow].([]byte); ok {
		var flow AuthFlow
		if err := json.Unmarshal(data, &flow); err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable auth flow state")
			s.dirty = true
		} else {
			s.authFlow = &flow
		}
	}

	return s
}

func (s *Session) ID() string {
	return s.raw.ID
}

// Renew moves the session to a fresh id on the next save and erases the record kept under the old one.
func (s *Session) Renew() {
	if s.raw.ID != "" {
		s.previousID = s.raw.ID
	}
	s.raw.ID = ""
	s.dirty = true
}

func (s *Session) IsNew() bool {
	return s.raw.IsNew
}

// IsDirty reports whether the session has unsaved changes.
func (s *Session) IsDirty() bool {
	return s.dirty
}

func (s *Session) Identity() *identity.Identity {
	return s.identity
}

func (s *Session) SetIdentity(id *identity.Identity) {
	s.identity = id
	s.dirty = true
}

func (s *Session) TokenCache() []byte {
	return s.tokenCache
}

func (s *Session) SetTokenCache(data []byte) {
	s.tokenCache = data
	s.dirty = true
}

func (s *Session) AuthFlow() *AuthFlow {
	return s.authFlow
}

func (s *Session) SetAuthFlow(flow *AuthFlow) {
	s.authFlow = flow
	s.dirty = true
}

// ClearAuth removes the identity, the token cache and any pending login. Flash messages and other
// unrelated values survive.
func (s *Session) ClearAuth() {
	if s.identity == nil && s.tokenCache == nil && s.authFlow == nil {
		return
	}
	s.identity = nil
	s.tokenCache = nil
	s.authFlow = nil
	s.dirty = true
}

func (s *Session) AddFlash(category, message string) {
	s.newFlashes = append(s.newFlashes, Flash{Category: category, Message: message})
	s.dirty = true
}

// Flashes returns and consumes the stored flash messages, including ones added during this request.
func (s *Session) Flashes() []Flash {
	var flashes []Flash
	for _, v := range s.raw.Flashes(keyFlashes) {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	if len(flashes) > 0 {
		s.dirty = true
	}
	flashes = append(flashes, s.newFlashes...)
	s.newFlashes = nil
	return flashes
}

// sync writes the typed fields back into the underlying values.
func (s *Session) sync() error {
	if err := setJSON(s.raw, keyIdentity, s.identity); err != nil {
		return err
	}
	if err := setJSON(s.raw, keyAuthFlow, s.authFlow); err != nil {
		return err
	}
	if len(s.tokenCache) == 0 {
		delete(s.raw.Values, keyTokenCache)
	} else {
		s.raw.Values[keyTokenCache] = s.tokenCache
	}
	for _, f := range s.newFlashes {
		s.raw.AddFlash(f, keyFlashes)
	}
	s.newFlashes = nil
	return nil
}

func setJSON[T any](raw *gsessions.Session, key string, v *T) error {
	if v == nil {
		delete(raw.Values, key)
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw.Values[key] = data
	return nil
}
