package ui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"apidash/internal/dashboard"
	"apidash/internal/input"
	"apidash/internal/model"
	"apidash/internal/orchestrator"
)

// View is everything the renderer draws. It is derived from a dashboard
// snapshot and holds no behaviour of its own.
type View struct {
	Items    []Item
	Selected *model.Endpoint
	Fields   []FieldView
	Users    []model.User
	Deps     []string
	Blocked  []string

	Phase   orchestrator.Phase
	Status  string
	Payload any
	CanSend bool
}

type Item struct {
	ID          string
	Method      string
	Description string
	Active      bool
}

type FieldView struct {
	Name     string
	Label    string
	Value    string
	Required bool
	Hint     string
	Problem  string
	Choices  bool
}

func Project(s dashboard.State) View {
	v := View{
		Users:   s.Users,
		Phase:   s.Lifecycle.Phase,
		CanSend: s.Selected != nil && !s.Busy,
	}

	for _, ep := range s.Endpoints {
		v.Items = append(v.Items, Item{
			ID:          ep.ID,
			Method:      ep.Method,
			Description: ep.Description,
			Active:      s.Selected != nil && s.Selected.ID == ep.ID,
		})
	}

	keys := make([]string, 0, len(s.Deps))
	for k := range s.Deps {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Deps = append(v.Deps, k+"="+s.Deps[model.DependencyKey(k)])
	}

	switch s.Lifecycle.Phase {
	case orchestrator.Loading:
		v.Status = "Loading..."
	case orchestrator.Error:
		v.Status = s.Lifecycle.Message
	case orchestrator.Success:
		v.Payload = s.Lifecycle.Payload
	}

	if s.Selected == nil {
		return v
	}
	v.Selected = s.Selected

	for _, r := range s.Selected.Requires {
		if _, ok := s.Deps[r.Key]; !ok {
			v.Blocked = append(v.Blocked, r.Message)
		}
	}

	problems := fieldProblems(s.InputError)
	for _, f := range s.Selected.Fields {
		fv := FieldView{
			Name:     f.Name,
			Label:    f.Label,
			Required: f.Required,
			Problem:  problems[f.Name],
			Choices:  f.Source == model.KeyUsers,
		}
		if s.Input != nil {
			fv.Value, _ = s.Input.Get(f.Name)
		}
		if fv.Choices {
			fv.Hint = userHint(fv.Value, s.Users)
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

func fieldProblems(err error) map[string]string {
	out := map[string]string{}
	var ve *input.ValidationError
	if errors.As(err, &ve) {
		for _, f := range ve.Fields {
			out[f.Field] = f.Message
		}
	}
	return out
}

func userHint(value string, users []model.User) string {
	if len(users) == 0 {
		return "run Get Users List to choose a user"
	}
	if id, err := strconv.Atoi(value); err == nil {
		for _, u := range users {
			if u.ID == id {
				return u.Name
			}
		}
	}
	return fmt.Sprintf("press u to choose (%d users)", len(users))
}

// NextUser returns the id following current in users, wrapping around.
func NextUser(current string, users []model.User) (string, bool) {
	if len(users) == 0 {
		return "", false
	}
	if id, err := strconv.Atoi(current); err == nil {
		for i, u := range users {
			if u.ID == id {
				return strconv.Itoa(users[(i+1)%len(users)].ID), true
			}
		}
	}
	return strconv.Itoa(users[0].ID), true
}
