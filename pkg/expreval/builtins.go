package expreval

import (
	"fmt"
	"strings"
	"time"
)

type builtinFunc func(s *scope, args []value) (value, error)

// builtins is the complete capability surface of the expression language.
// Anything not listed here is unreachable from an expression.
var builtins = map[string]builtinFunc{
	"now":            evalNow,
	"today":          evalToday,
	"date":           evalDate,
	"format":         evalFormat,
	"add_days":       dateShift(func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }),
	"add_months":     dateShift(func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }),
	"add_years":      dateShift(func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) }),
	"start_of_month": evalStartOfMonth,
	"end_of_month":   evalEndOfMonth,
	"year":           datePart(func(t time.Time) int64 { return int64(t.Year()) }),
	"month":          datePart(func(t time.Time) int64 { return int64(t.Month()) }),
	"day":            datePart(func(t time.Time) int64 { return int64(t.Day()) }),
	"weekday":        evalWeekday,
	"pad":            evalPad,
	"str":            evalStr,
	"print":          evalPrint,
}

func arity(name string, args []value, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s() takes %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func asTime(name string, v value) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%s() expects a date, got %s", name, typeName(v))
	}
	return t, nil
}

func asInt(name string, v value) (int64, error) {
	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s() expects a number, got %s", name, typeName(v))
	}
	return i, nil
}

func evalNow(s *scope, args []value) (value, error) {
	if err := arity("now", args, 0); err != nil {
		return nil, err
	}
	return s.clock.Now(), nil
}

func evalToday(s *scope, args []value) (value, error) {
	if err := arity("today", args, 0); err != nil {
		return nil, err
	}
	t := s.clock.Now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
}

func evalDate(_ *scope, args []value) (value, error) {
	if err := arity("date", args, 3); err != nil {
		return nil, err
	}
	y, err := asInt("date", args[0])
	if err != nil {
		return nil, err
	}
	m, err := asInt("date", args[1])
	if err != nil {
		return nil, err
	}
	d, err := asInt("date", args[2])
	if err != nil {
		return nil, err
	}
	if m < 1 || m > 12 {
		return nil, fmt.Errorf("date() month out of range: %d", m)
	}
	return time.Date(int(y), time.Month(m), int(d), 0, 0, 0, 0, time.UTC), nil
}

// evalFormat renders a date with a Go reference layout, default 2006-01-02.
func evalFormat(_ *scope, args []value) (value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, fmt.Errorf("format() takes 1 or 2 arguments, got %d", len(args))
	}
	t, err := asTime("format", args[0])
	if err != nil {
		return nil, err
	}
	layout := "2006-01-02"
	if len(args) == 2 {
		l, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("format() layout must be a string")
		}
		layout = l
	}
	return t.Format(layout), nil
}

func dateShift(shift func(time.Time, int) time.Time) builtinFunc {
	return func(_ *scope, args []value) (value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("date shift takes 2 arguments, got %d", len(args))
		}
		t, err := asTime("shift", args[0])
		if err != nil {
			return nil, err
		}
		n, err := asInt("shift", args[1])
		if err != nil {
			return nil, err
		}
		return shift(t, int(n)), nil
	}
}

func datePart(part func(time.Time) int64) builtinFunc {
	return func(_ *scope, args []value) (value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("date part takes 1 argument, got %d", len(args))
		}
		t, err := asTime("part", args[0])
		if err != nil {
			return nil, err
		}
		return part(t), nil
	}
}

func evalStartOfMonth(_ *scope, args []value) (value, error) {
	if err := arity("start_of_month", args, 1); err != nil {
		return nil, err
	}
	t, err := asTime("start_of_month", args[0])
	if err != nil {
		return nil, err
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()), nil
}

func evalEndOfMonth(_ *scope, args []value) (value, error) {
	if err := arity("end_of_month", args, 1); err != nil {
		return nil, err
	}
	t, err := asTime("end_of_month", args[0])
	if err != nil {
		return nil, err
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, -1), nil
}

func evalWeekday(_ *scope, args []value) (value, error) {
	if err := arity("weekday", args, 1); err != nil {
		return nil, err
	}
	t, err := asTime("weekday", args[0])
	if err != nil {
		return nil, err
	}
	return t.Weekday().String(), nil
}

// evalPad zero-pads a number to the given width, e.g. pad(7, 2) == "07".
func evalPad(_ *scope, args []value) (value, error) {
	if err := arity("pad", args, 2); err != nil {
		return nil, err
	}
	n, err := asInt("pad", args[0])
	if err != nil {
		return nil, err
	}
	w, err := asInt("pad", args[1])
	if err != nil {
		return nil, err
	}
	if w < 1 || w > 32 {
		return nil, fmt.Errorf("pad() width out of range: %d", w)
	}
	return fmt.Sprintf("%0*d", int(w), n), nil
}

func evalStr(_ *scope, args []value) (value, error) {
	if err := arity("str", args, 1); err != nil {
		return nil, err
	}
	return stringify(args[0]), nil
}

func evalPrint(s *scope, args []value) (value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = stringify(a)
	}
	s.output.WriteString(strings.Join(parts, " "))
	s.output.WriteString("\n")
	return "", nil
}
