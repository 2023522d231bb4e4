// Package auth authenticates API callers with static API keys and attaches
// the resulting identity to the request context. Role names are defined by
// the API layer; this package only stores and matches them.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Identity is an authenticated caller. Subject names the operator or
// dashboard for log lines; Roles gate individual endpoints.
type Identity struct {
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator resolves keys from a fixed spec loaded at startup,
// format "key:subject:role|role" with entries separated by commas.
type StaticAPIKeyValidator struct {
	identities map[string]Identity
}

func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{identities: map[string]Identity{}}
	for entry := range strings.SplitSeq(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, err
		}
		if _, exists := validator.identities[key]; exists {
			return nil, fmt.Errorf("duplicate API key in entry %q", entry)
		}
		validator.identities[key] = identity
	}
	return validator, nil
}

func parseKeyEntry(entry string) (string, Identity, error) {
	key, rest, ok := strings.Cut(entry, ":")
	if !ok {
		return "", Identity{}, fmt.Errorf("invalid key entry %q: want key:subject:role|role", entry)
	}
	subject, roleSpec, ok := strings.Cut(rest, ":")
	if !ok {
		return "", Identity{}, fmt.Errorf("invalid key entry %q: want key:subject:role|role", entry)
	}
	key = strings.TrimSpace(key)
	subject = strings.TrimSpace(subject)
	if key == "" || subject == "" {
		return "", Identity{}, fmt.Errorf("invalid key entry %q: key and subject are required", entry)
	}

	var roles []string
	for role := range strings.SplitSeq(roleSpec, "|") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid key entry %q: at least one role is required", entry)
	}
	slices.Sort(roles)
	return key, Identity{Subject: subject, Roles: roles}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.identities[apiKey]
	return identity, ok
}
