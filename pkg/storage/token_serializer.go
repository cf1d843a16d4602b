package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ContToken represents a continuation token structure used in pagination.
// Pages are ordered by record id, so the id of the last record returned is enough to resume.
type ContToken struct {
	LastID string `json:"lastId"`
}

// NewContToken creates a new instance of ContToken with the provided record id.
func NewContToken(lastID string) *ContToken {
	return &ContToken{
		LastID: lastID,
	}
}

// DecodeContToken decodes the continuation token into a ContToken struct.
func DecodeContToken(continuationToken string) (*ContToken, error) {
	var token ContToken

	err := token.Deserialize(continuationToken)
	if err != nil {
		return nil, err
	}

	return &token, nil
}

func (c *ContToken) Serialize() string {
	if c.LastID == "" {
		return ""
	}

	// custom encoding of the struct into a json string
	// this ensures the token is always valid and avoids needing to handle any encoding errors
	encoded := fmt.Sprintf("{%q:%q}", "lastId", c.LastID)
	return base64.URLEncoding.EncodeToString([]byte(encoded))
}

func (c *ContToken) Deserialize(continuationToken string) error {
	if continuationToken == "" {
		c.LastID = ""
		return nil
	}

	decoded, err := base64.URLEncoding.DecodeString(continuationToken)
	if err != nil {
		return ErrInvalidContinuationToken
	}

	if err := json.Unmarshal(decoded, c); err != nil || c.LastID == "" {
		return ErrInvalidContinuationToken
	}

	return nil
}
