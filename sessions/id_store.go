package sessions

import (
	"context"
	"encoding/base32"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
)

// valueStore keeps encoded session values by session id.
type valueStore interface {
	load(ctx context.Context, id string) (string, bool, error)
	save(ctx context.Context, id, data string, ttl time.Duration) error
	erase(ctx context.Context, id string) error
}

// idStore is a gorilla session store whose cookie only carries the signed session id. The values live
// server side for the configured lifetime, whatever the cookie's MaxAge; only a negative MaxAge erases them.
type idStore struct {
	Codecs  []securecookie.Codec
	Options *gsessions.Options

	values   valueStore
	lifetime time.Duration
	kind     string
}

func newIDStore(kind string, values valueStore, options *gsessions.Options, lifetime time.Duration, keyPairs ...[]byte) *idStore {
	opts := *options
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxLength(0)
		}
	}
	setCodecMaxAge(codecs, lifetime)
	return &idStore{
		Codecs:   codecs,
		Options:  &opts,
		values:   values,
		lifetime: lifetime,
		kind:     kind,
	}
}

// Get returns the session for name, cached in the request registry.
func (s *idStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New returns a session for name, loading its values when the request carries a valid id.
func (s *idStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return session, err
	}
	data, found, err := s.values.load(r.Context(), id)
	if err != nil {
		return session, err
	}
	if !found {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, data, &session.Values, s.Codecs...); err != nil {
		return session, err
	}
	session.ID = id
	session.IsNew = false
	return session, nil
}

// Save writes the session values and refreshes the cookie. A negative MaxAge deletes both.
func (s *idStore) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.values.erase(ctx, session.ID); err != nil {
				return fmt.Errorf("[%s Save] erase: %w", s.kind, err)
			}
		}
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}
	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("[%s Save] encode values: %w", s.kind, err)
	}
	if err := s.values.save(ctx, session.ID, data, s.lifetime); err != nil {
		return fmt.Errorf("[%s Save] %w", s.kind, err)
	}
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("[%s Save] encode id: %w", s.kind, err)
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Erase removes the values stored under id.
func (s *idStore) Erase(ctx context.Context, id string) error {
	return s.values.erase(ctx, id)
}

// MaxAge sets the cookie MaxAge. A positive age also becomes the server side lifetime.
func (s *idStore) MaxAge(age int) {
	s.Options.MaxAge = age
	if age > 0 {
		s.lifetime = time.Duration(age) * time.Second
	}
	setCodecMaxAge(s.Codecs, s.lifetime)
}

// newSessionID returns a random id that is safe as a file name and a Redis key.
func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}
