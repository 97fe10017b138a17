package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/validation"
)

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var email, password *string
	err := decodeObject(w, r, func(d *jx.Decoder, key string, c *validation.Collector) error {
		var err error
		switch key {
		case "email":
			email, err = readString(d, c, key)
		case "password":
			password, err = readString(d, c, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil {
		var c validation.Collector
		c.Check(deref(email) != "", "email", "is required")
		c.Check(deref(password) != "", "password", "is required")
		err = c.Err()
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	s, err := h.sessions.SignIn(r.Context(), *email, *password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Str(s.Token) })
			e.Field("user", func(e *jx.Encoder) { encodeUser(e, s.User) })
		})
	})
}

// userInfo reports the claims of a token without consulting the user store.
func (h *Handler) userInfo(w http.ResponseWriter, r *http.Request) {
	var token *string
	err := decodeObject(w, r, func(d *jx.Decoder, key string, c *validation.Collector) error {
		if key != "token" {
			return d.Skip()
		}
		var err error
		token, err = readString(d, c, key)
		return err
	})
	if err == nil && deref(token) == "" {
		err = badRequest("missing token")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	id, err := h.sessions.Introspect(*token)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("userId", func(e *jx.Encoder) { e.Str(id.UserID) })
			e.Field("email", func(e *jx.Encoder) { e.Str(id.Email) })
		})
	})
}
