// Package tokens validates SlashID user tokens remotely and reads their
// subject without verifying them.
package tokens

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"slashid/pkg/gateway"
)

// ErrMalformedToken is returned when a token is not three dot-separated
// segments or its payload cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

const validatePath = "token/validate"

// API is the subset of gateway.Client the verifier needs.
type API interface {
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
}

type Verifier struct {
	api API
}

func NewVerifier(api API) *Verifier { return &Verifier{api: api} }

type validateRequest struct {
	Token string `json:"token"`
}

type validateResult struct {
	Valid bool `json:"valid"`
}

// Validate asks the API whether token is valid. A missing "valid" flag counts
// as invalid. API failures are returned, never mapped to false.
func (v *Verifier) Validate(ctx context.Context, token string) (bool, error) {
	raw, err := v.api.Post(ctx, validatePath, validateRequest{Token: token})
	if err != nil {
		return false, err
	}
	res, err := gateway.Decode[validateResult](raw)
	if err != nil {
		return false, err
	}
	return res.Valid, nil
}

// Subject returns the "sub" claim of token without checking its signature.
// Use it only after Validate or on tokens from a trusted source. A payload
// without "sub" yields ""; a non-string sub is returned in its printed form.
func (v *Verifier) Subject(token string) (string, error) { return Subject(token) }

func Subject(token string) (string, error) {
	if strings.Count(token, ".") != 2 {
		return "", fmt.Errorf("%w: expected 3 segments", ErrMalformedToken)
	}
	segment := strings.Split(token, ".")[1]
	payload, err := decodeSegment(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims struct {
		Sub any `json:"sub"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	switch sub := claims.Sub.(type) {
	case nil:
		return "", nil
	case string:
		return sub, nil
	default:
		return fmt.Sprint(sub), nil
	}
}

// Issued tokens use unpadded base64url, but hand-built ones in the wild carry
// padding or the standard alphabet.
var encodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

func decodeSegment(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
