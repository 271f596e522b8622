package core

import (
	"database/sql/driver"
	"time"

	"github.com/pkg/errors"
)

// DateDisplayLayout is the layout dates take at presentation boundaries
// (JSON payloads, emails). Internally a Date is a plain UTC time.Time
// truncated to day precision; the formatted string is never stored.
const DateDisplayLayout = "02/01/2006"

type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Date())
}

// ParseDate parses a DD/MM/YYYY display string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateDisplayLayout, s)
	if err != nil {
		return Date{}, errors.Wrap(err, "parsing date")
	}
	return Date{Time: t}, nil
}

func (d Date) Display() string {
	return d.Format(DateDisplayLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.Display() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.New("date must be a string in DD/MM/YYYY form")
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(value interface{}) error {
	if value == nil {
		*d = Date{}
		return nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return errors.Errorf("cannot scan %T into Date", value)
	}
	*d = NewDate(t.UTC().Date())
	return nil
}
