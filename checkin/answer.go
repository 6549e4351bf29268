package checkin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AnswerKind is the JSON shape of a submitted answer. The question type
// decides how a shape is read: a string is an option id for single choice
// and free text for free-text questions.
type AnswerKind string

const (
	AnswerString      AnswerKind = "string"
	AnswerList        AnswerKind = "list"
	AnswerNumber      AnswerKind = "number"
	AnswerUnsupported AnswerKind = "unsupported" // bool, object, mixed list
)

type AnswerValue struct {
	Kind   AnswerKind
	String string
	List   []string
	Number decimal.Decimal
}

type Answers map[string]AnswerValue

func StringAnswer(s string) AnswerValue { return AnswerValue{Kind: AnswerString, String: s} }

func ListAnswer(ids ...string) AnswerValue {
	return AnswerValue{Kind: AnswerList, List: append([]string{}, ids...)}
}

func NumberAnswer(n decimal.Decimal) AnswerValue { return AnswerValue{Kind: AnswerNumber, Number: n} }

// IsEmpty reports an absent answer: no value, blank string, or empty list.
func (a AnswerValue) IsEmpty() bool {
	switch a.Kind {
	case "":
		return true
	case AnswerString:
		return strings.TrimSpace(a.String) == ""
	case AnswerList:
		return len(a.List) == 0
	default:
		return false
	}
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerString:
		return json.Marshal(a.String)
	case AnswerList:
		if a.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.List)
	case AnswerNumber:
		return []byte(a.Number.String()), nil
	default:
		return []byte("null"), nil
	}
}

func (a *AnswerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty answer value")
	}

	*a = AnswerValue{}
	switch b[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = StringAnswer(s)
	case '[':
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			a.Kind = AnswerUnsupported
			return nil
		}
		*a = ListAnswer(ids...)
	case 't', 'f', '{':
		a.Kind = AnswerUnsupported
	default:
		n, err := decimal.NewFromString(string(b))
		if err != nil {
			return fmt.Errorf("invalid numeric answer %s: %w", b, err)
		}
		*a = NumberAnswer(n)
	}
	return nil
}
