package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Getter is the parameter-store seam used to fetch the API key when the
// deployment keeps secrets out of the environment.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the expected JSON shape stored under the key parameter.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParameterCredentials resolves the API key from a parameter-store value
// holding a JSON token payload.
type ParameterCredentials struct {
	getter Getter
	name   string
}

func NewParameterCredentials(g Getter, name string) (*ParameterCredentials, error) {
	if g == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("openai: key parameter name must not be empty")
	}
	return &ParameterCredentials{getter: g, name: name}, nil
}

func (p *ParameterCredentials) APIKey(ctx context.Context) (string, error) {
	raw, err := p.getter.GetParameter(ctx, p.name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch key from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore key value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", &MissingCredentialError{Source: p.name}
	}
	return tp.Token, nil
}
