package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AssistType is the quick action attached to a task.
type AssistType int

const (
	AssistNone AssistType = iota
	AssistCalendar
	AssistMaps
	AssistPhone
	AssistEmail
	AssistAI
	AssistBrowser
)

var assistTypeNames = []string{"None", "Calendar", "Maps", "Phone", "Email", "AI", "Browser"}

func (a AssistType) String() string {
	if a < 0 || int(a) >= len(assistTypeNames) {
		return "None"
	}
	return assistTypeNames[a]
}

// EnumValues lists the accepted names, in order.
func (a AssistType) EnumValues() []string {
	out := make([]string, len(assistTypeNames))
	copy(out, assistTypeNames)
	return out
}

// ParseAssistType maps a name or number to an AssistType. Unknown values become AssistNone.
func ParseAssistType(s string) AssistType {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n < len(assistTypeNames) {
			return AssistType(n)
		}
		return AssistNone
	}
	for i, name := range assistTypeNames {
		if strings.EqualFold(name, s) {
			return AssistType(i)
		}
	}
	return AssistNone
}

func (a AssistType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *AssistType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*a = ParseAssistType(name)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid assist type: %s", string(data))
	}
	*a = ParseAssistType(strconv.Itoa(n))
	return nil
}
