package condition

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

func cond(typeID, data string) *models.TrophyCondition {
	return &models.TrophyCondition{ID: 1, ConditionType: typeID, Data: json.RawMessage(data)}
}

func TestRangeHandler(t *testing.T) {
	h := RangeHandler{Column: "users.post_count"}

	tests := []struct {
		name     string
		data     string
		wantSQL  string
		wantArgs []interface{}
		wantErr  bool
	}{
		{"min only", `{"min":10}`, "users.post_count >= ?", []interface{}{10}, false},
		{"max only", `{"max":5}`, "users.post_count <= ?", []interface{}{5}, false},
		{"both", `{"min":1,"max":5}`, "users.post_count BETWEEN ? AND ?", []interface{}{1, 5}, false},
		{"zero min", `{"min":0}`, "users.post_count >= ?", []interface{}{0}, false},
		{"min greater than max", `{"min":6,"max":5}`, "", nil, true},
		{"neither", `{}`, "", nil, true},
		{"empty data", ``, "", nil, true},
		{"unknown field", `{"minimum":3}`, "", nil, true},
		{"wrong type", `{"min":"ten"}`, "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := query.NewBuilder()
			err := h.AddUserCondition(cond(TypePosts, tt.data), b)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidData) {
					t.Errorf("expected ErrInvalidData, got %v", err)
				}
				if b.Len() != 0 {
					t.Errorf("failed handler must not add clauses, got %d", b.Len())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			clauses := b.Clauses()
			if len(clauses) != 1 {
				t.Fatalf("expected exactly one clause, got %d", len(clauses))
			}
			if clauses[0].SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", clauses[0].SQL, tt.wantSQL)
			}
			if len(clauses[0].Args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", clauses[0].Args, tt.wantArgs)
			}
			for i := range tt.wantArgs {
				if clauses[0].Args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, clauses[0].Args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestRegistrationHandler(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	h := &RegistrationHandler{Clock: clock.Fake(now)}

	t.Run("min_days", func(t *testing.T) {
		b := query.NewBuilder()
		if err := h.AddUserCondition(cond(TypeRegistration, `{"min_days":365}`), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c := b.Clauses()[0]
		if c.SQL != "users.registration_date <= ?" {
			t.Errorf("unexpected SQL %q", c.SQL)
		}
		if want := now.AddDate(0, 0, -365); !c.Args[0].(time.Time).Equal(want) {
			t.Errorf("cutoff = %v, want %v", c.Args[0], want)
		}
	})

	t.Run("max_days", func(t *testing.T) {
		b := query.NewBuilder()
		if err := h.AddUserCondition(cond(TypeRegistration, `{"max_days":30}`), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c := b.Clauses()[0]
		if c.SQL != "users.registration_date >= ?" {
			t.Errorf("unexpected SQL %q", c.SQL)
		}
	})

	t.Run("window", func(t *testing.T) {
		b := query.NewBuilder()
		if err := h.AddUserCondition(cond(TypeRegistration, `{"min_days":7,"max_days":30}`), b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c := b.Clauses()[0]
		if c.SQL != "users.registration_date BETWEEN ? AND ?" {
			t.Errorf("unexpected SQL %q", c.SQL)
		}
		lower, upper := c.Args[0].(time.Time), c.Args[1].(time.Time)
		if !lower.Before(upper) {
			t.Errorf("expected lower %v before upper %v", lower, upper)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, data := range []string{`{}`, `{"min_days":30,"max_days":7}`} {
			if err := h.AddUserCondition(cond(TypeRegistration, data), query.NewBuilder()); !errors.Is(err, ErrInvalidData) {
				t.Errorf("data %s: expected ErrInvalidData, got %v", data, err)
			}
		}
	})
}

func TestStateHandler(t *testing.T) {
	b := query.NewBuilder()
	if err := (StateHandler{}).AddUserCondition(cond(TypeState, `{"banned":false}`), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := b.Clauses()[0]
	if c.SQL != "users.banned = ?" || c.Args[0] != false {
		t.Errorf("unexpected clause %+v", c)
	}

	if err := (StateHandler{}).AddUserCondition(cond(TypeState, `{}`), query.NewBuilder()); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for missing flag, got %v", err)
	}
}

func TestUsernameHandler(t *testing.T) {
	b := query.NewBuilder()
	if err := (UsernameHandler{}).AddUserCondition(cond(TypeUsername, `{"pattern":"mod_*"}`), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := b.Clauses()[0]
	if c.SQL != "users.username LIKE ?" || c.Args[0] != "mod_%" {
		t.Errorf("unexpected clause %+v", c)
	}

	if err := (UsernameHandler{}).AddUserCondition(cond(TypeUsername, `{"pattern":"  "}`), query.NewBuilder()); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for blank pattern, got %v", err)
	}
}
