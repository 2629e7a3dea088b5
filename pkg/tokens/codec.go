package tokens

import "time"

// Codec signs and verifies both token classes. Access and refresh secrets
// are independent so a leak of one class cannot forge the other.
type Codec struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

func (c *Codec) SignAccess(sub, email, role string, exp time.Time) (string, error) {
	return NewAccessToken(c.AccessSecret, sub, email, role, exp)
}

func (c *Codec) ParseAccess(token string) (*AccessClaims, error) {
	return AccessClaimsFromToken(token, c.AccessSecret)
}

func (c *Codec) SignRefresh(sub, tokenID string, exp time.Time) (string, error) {
	return NewRefreshToken(c.RefreshSecret, sub, tokenID, exp)
}

func (c *Codec) ParseRefresh(token string) (*RefreshClaims, error) {
	return RefreshClaimsFromToken(token, c.RefreshSecret)
}
