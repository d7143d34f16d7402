package session

import (
    "crypto/hmac"
    "crypto/sha256"
    "crypto/subtle"
    "encoding/base64"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie issued after login.
const CookieName = "pdfmerge_session"

// Signer issues and verifies HMAC-SHA256 signed session tokens.
// Tokens are self-contained: no server-side session storage.
type Signer struct {
    key []byte
    ttl time.Duration
}

type payload struct {
    U       string `json:"u"`
    ExpUnix int64  `json:"exp_unix"`
}

// NewSigner creates a Signer with the given secret and token TTL.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
    if len(secret) == 0 {
        return nil, fmt.Errorf("session secret must be non-empty")
    }
    return &Signer{key: secret, ttl: ttl}, nil
}

// Issue returns a signed token for username, expiring ttl after now.
func (s *Signer) Issue(username string, now time.Time) string {
    p := payload{U: username, ExpUnix: now.Add(s.ttl).Unix()}
    body, _ := json.Marshal(p)
    b64 := base64.RawURLEncoding.EncodeToString(body)

    mac := hmac.New(sha256.New, s.key)
    mac.Write([]byte(b64))
    sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

    return "v1." + b64 + "." + sig
}

// Verify checks signature and expiry and returns the username.
func (s *Signer) Verify(token string, now time.Time) (string, bool) {
    parts := strings.Split(token, ".")
    if len(parts) != 3 || parts[0] != "v1" {
        return "", false
    }
    sig, err := base64.RawURLEncoding.DecodeString(parts[2])
    if err != nil {
        return "", false
    }

    mac := hmac.New(sha256.New, s.key)
    mac.Write([]byte(parts[1]))
    if !hmac.Equal(sig, mac.Sum(nil)) {
        return "", false
    }

    body, err := base64.RawURLEncoding.DecodeString(parts[1])
    if err != nil {
        return "", false
    }
    var p payload
    if err := json.Unmarshal(body, &p); err != nil {
        return "", false
    }
    if p.ExpUnix <= now.Unix() {
        return "", false
    }
    return p.U, true
}

// Credentials verifies the single configured user. The password check
// uses bcrypt when a hash is configured, otherwise a constant-time
// comparison against the plaintext value from the environment.
type Credentials struct {
    Username     string
    Password     string
    PasswordHash string
}

// Match reports whether the given username/password pair is correct.
func (c Credentials) Match(username, password string) bool {
    userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
    var passOK bool
    if c.PasswordHash != "" {
        passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
    } else {
        passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
    }
    return userOK && passOK
}
