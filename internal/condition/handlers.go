package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

// Built-in condition type IDs.
const (
	TypePosts          = "user.posts"
	TypeLikes          = "user.likes"
	TypeActivityPoints = "user.activity_points"
	TypeTrophyPoints   = "user.trophy_points"
	TypeRegistration   = "user.registration"
	TypeState          = "user.state"
	TypeUsername       = "user.username"
)

// Built-in condition groups.
const (
	GroupGeneral  = "general"
	GroupContents = "contents"
	GroupTrophies = "trophies"
)

// DefaultTypes returns the built-in trophy condition types.
func DefaultTypes(clk clock.Clock) []ConditionType {
	return []ConditionType{
		{ID: TypeRegistration, Name: "Registration date", Group: GroupGeneral, Handler: &RegistrationHandler{Clock: clk}},
		{ID: TypeState, Name: "Account state", Group: GroupGeneral, Handler: StateHandler{}},
		{ID: TypePosts, Name: "Posts", Group: GroupContents, Handler: RangeHandler{Column: "users.post_count"}},
		{ID: TypeLikes, Name: "Likes received", Group: GroupContents, Handler: RangeHandler{Column: "users.likes_received"}},
		{ID: TypeActivityPoints, Name: "Activity points", Group: GroupContents, Handler: RangeHandler{Column: "users.activity_points"}},
		{ID: TypeTrophyPoints, Name: "Trophies held", Group: GroupTrophies, Handler: RangeHandler{Column: "users.trophy_points"}},
		{ID: TypeUsername, Name: "Username pattern", Handler: UsernameHandler{}},
	}
}

// RegisterDefaults registers the built-in types under DefinitionName.
func RegisterDefaults(reg *Registry, clk clock.Clock) error {
	for _, ct := range DefaultTypes(clk) {
		if err := reg.Register(DefinitionName, ct); err != nil {
			return err
		}
	}
	return nil
}

// decodeData strictly unmarshals a condition's JSON data into v.
func decodeData(cond *models.TrophyCondition, v interface{}) error {
	if len(bytes.TrimSpace(cond.Data)) == 0 {
		return fmt.Errorf("%w: condition %d (%s) has no data", ErrInvalidData, cond.ID, cond.ConditionType)
	}

	dec := json.NewDecoder(bytes.NewReader(cond.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: condition %d (%s): %v", ErrInvalidData, cond.ID, cond.ConditionType, err)
	}
	return nil
}

// RangeData bounds an integer user column. Either bound may be omitted.
type RangeData struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// RangeHandler filters an integer column by inclusive bounds.
type RangeHandler struct {
	Column string
}

// AddUserCondition implements Handler.
func (h RangeHandler) AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error {
	var data RangeData
	if err := decodeData(cond, &data); err != nil {
		return err
	}

	switch {
	case data.Min == nil && data.Max == nil:
		return fmt.Errorf("%w: condition %d (%s) sets neither min nor max", ErrInvalidData, cond.ID, cond.ConditionType)
	case data.Min != nil && data.Max != nil:
		if *data.Min > *data.Max {
			return fmt.Errorf("%w: condition %d (%s) has min %d > max %d", ErrInvalidData, cond.ID, cond.ConditionType, *data.Min, *data.Max)
		}
		b.Add(h.Column+" BETWEEN ? AND ?", *data.Min, *data.Max)
	case data.Min != nil:
		b.Add(h.Column+" >= ?", *data.Min)
	default:
		b.Add(h.Column+" <= ?", *data.Max)
	}
	return nil
}

// RegistrationData bounds the account age in days.
type RegistrationData struct {
	MinDays *int `json:"min_days,omitempty"` // registered at least this many days ago
	MaxDays *int `json:"max_days,omitempty"` // registered at most this many days ago
}

// RegistrationHandler filters on users.registration_date relative to the clock.
type RegistrationHandler struct {
	Clock clock.Clock
}

// AddUserCondition implements Handler.
func (h *RegistrationHandler) AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error {
	var data RegistrationData
	if err := decodeData(cond, &data); err != nil {
		return err
	}
	if data.MinDays == nil && data.MaxDays == nil {
		return fmt.Errorf("%w: condition %d (%s) sets neither min_days nor max_days", ErrInvalidData, cond.ID, cond.ConditionType)
	}
	if data.MinDays != nil && data.MaxDays != nil && *data.MinDays > *data.MaxDays {
		return fmt.Errorf("%w: condition %d (%s) has min_days > max_days", ErrInvalidData, cond.ID, cond.ConditionType)
	}

	now := h.Clock.Now()
	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }

	switch {
	case data.MinDays != nil && data.MaxDays != nil:
		b.Add("users.registration_date BETWEEN ? AND ?", daysAgo(*data.MaxDays), daysAgo(*data.MinDays))
	case data.MinDays != nil:
		b.Add("users.registration_date <= ?", daysAgo(*data.MinDays))
	default:
		b.Add("users.registration_date >= ?", daysAgo(*data.MaxDays))
	}
	return nil
}

// StateData selects banned or active accounts.
type StateData struct {
	Banned *bool `json:"banned"`
}

// StateHandler filters on the ban flag.
type StateHandler struct{}

// AddUserCondition implements Handler.
func (StateHandler) AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error {
	var data StateData
	if err := decodeData(cond, &data); err != nil {
		return err
	}
	if data.Banned == nil {
		return fmt.Errorf("%w: condition %d (%s) is missing banned", ErrInvalidData, cond.ID, cond.ConditionType)
	}
	b.Add("users.banned = ?", *data.Banned)
	return nil
}

// UsernameData holds a wildcard pattern; "*" matches any run of characters.
type UsernameData struct {
	Pattern string `json:"pattern"`
}

// UsernameHandler filters usernames with a LIKE pattern.
type UsernameHandler struct{}

// AddUserCondition implements Handler.
func (UsernameHandler) AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error {
	var data UsernameData
	if err := decodeData(cond, &data); err != nil {
		return err
	}
	if strings.TrimSpace(data.Pattern) == "" {
		return fmt.Errorf("%w: condition %d (%s) has an empty pattern", ErrInvalidData, cond.ID, cond.ConditionType)
	}
	b.Add("users.username LIKE ?", strings.ReplaceAll(data.Pattern, "*", "%"))
	return nil
}
