package auth

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/halaqah/internal/platform/apperr"
)

const tokenSchema = `{
  "type": "object",
  "required": ["tokens"],
  "properties": {
    "tokens": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["hash", "id", "role", "tenant_id"],
        "properties": {
          "hash": {"type": "string", "minLength": 20},
          "id": {"type": "string", "minLength": 1},
          "role": {"enum": ["admin", "examiner", "teacher", "parent", "student"]},
          "tenant_id": {"type": "string"}
        }
      }
    }
  }
}`

type tokenEntry struct {
	Hash  string `yaml:"hash" json:"hash"`
	Actor `yaml:",inline"`
}

type tokenFile struct {
	Tokens []tokenEntry `yaml:"tokens" json:"tokens"`
}

// TokenAuthenticator resolves bearer tokens against bcrypt hashes.
type TokenAuthenticator struct {
	entries []tokenEntry
}

// LoadTokens reads a YAML token file:
//
//	tokens:
//	  - hash: $2a$10$...
//	    id: ustadh-ali
//	    role: examiner
//	    tenant_id: masjid-1
func LoadTokens(path string) (*TokenAuthenticator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	return ParseTokens(data)
}

// ParseTokens parses and validates token file contents.
func ParseTokens(data []byte) (*TokenAuthenticator, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(tokenSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validating token file: %w", err)
	}
	if !res.Valid() {
		return nil, fmt.Errorf("invalid token file: %v", res.Errors())
	}

	var f tokenFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &TokenAuthenticator{entries: f.Tokens}, nil
}

// NewTokenAuthenticator builds an authenticator from plaintext tokens, hashing
// each one. It is used for seeding development setups.
func NewTokenAuthenticator(tokens map[string]Actor) (*TokenAuthenticator, error) {
	ta := &TokenAuthenticator{}
	for token, actor := range tokens {
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hashing token for %s: %w", actor.ID, err)
		}
		ta.entries = append(ta.entries, tokenEntry{Hash: string(hash), Actor: actor})
	}
	return ta, nil
}

// Authenticate returns the actor whose hash matches token.
func (ta *TokenAuthenticator) Authenticate(token string) (Actor, error) {
	if token == "" {
		return Actor{}, apperr.Forbidden("missing token")
	}
	for _, e := range ta.entries {
		if bcrypt.CompareHashAndPassword([]byte(e.Hash), []byte(token)) == nil {
			return e.Actor, nil
		}
	}
	return Actor{}, apperr.Forbidden("unknown token")
}
