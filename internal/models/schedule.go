package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ClassType is the kind of teaching session.
type ClassType string

const (
	ClassLecture  ClassType = "LEC"
	ClassTutorial ClassType = "TUT"
	ClassSeminar  ClassType = "SEM"
	ClassLab      ClassType = "LAB"
	ClassDesign   ClassType = "DES"
	ClassProject  ClassType = "PRJ"
)

const (
	firstTeachWeek = 1
	lastTeachWeek  = 13
)

// ParseClassType normalises raw into a ClassType.
func ParseClassType(raw string) (ClassType, error) {
	switch t := ClassType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case ClassLecture, ClassTutorial, ClassSeminar, ClassLab, ClassDesign, ClassProject:
		return t, nil
	default:
		return "", fmt.Errorf("unknown class type %q", raw)
	}
}

// ClockTime is a time of day with minute resolution.
type ClockTime int

// ParseClockTime accepts "HH:MM" or "HHMM".
func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ":", "")
	if len(raw) != 4 {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	h, err := strconv.Atoi(raw[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	m, err := strconv.Atoi(raw[2:])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", raw)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON renders the time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM" or "HHMM".
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday, "WED": time.Wednesday,
	"THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

// ParseWeekday accepts English day names or their three-letter prefix.
func ParseWeekday(raw string) (time.Weekday, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if len(key) >= 3 {
		if d, ok := weekdayNames[key[:3]]; ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// Schedule is one recurring teaching slot of a course index.
type Schedule struct {
	Type   ClassType    `json:"type"`
	Group  string       `json:"group"`
	Day    time.Weekday `json:"day"`
	Venue  string       `json:"venue"`
	Remark string       `json:"remark,omitempty"`
	Begin  ClockTime    `json:"begin"`
	End    ClockTime    `json:"end"`
	Weeks  []int        `json:"weeks"`
}

// NewSchedule validates the fields of a schedule and normalises its weeks.
func NewSchedule(classType ClassType, group string, day time.Weekday, venue, remark string, begin, end ClockTime, weeks []int) (Schedule, error) {
	if _, err := ParseClassType(string(classType)); err != nil {
		return Schedule{}, err
	}
	if day < time.Sunday || day > time.Saturday {
		return Schedule{}, fmt.Errorf("invalid weekday %d", day)
	}
	if begin >= end {
		return Schedule{}, fmt.Errorf("schedule must begin before it ends (%s >= %s)", begin, end)
	}
	if len(weeks) == 0 {
		return Schedule{}, fmt.Errorf("schedule needs at least one teaching week")
	}
	normalized := slices.Clone(weeks)
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)
	for _, w := range normalized {
		if w < firstTeachWeek || w > lastTeachWeek {
			return Schedule{}, fmt.Errorf("teaching week %d outside %d-%d", w, firstTeachWeek, lastTeachWeek)
		}
	}
	return Schedule{
		Type:   classType,
		Group:  strings.TrimSpace(group),
		Day:    day,
		Venue:  strings.TrimSpace(venue),
		Remark: strings.TrimSpace(remark),
		Begin:  begin,
		End:    end,
		Weeks:  normalized,
	}, nil
}

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	s.Weeks = slices.Clone(s.Weeks)
	return s
}

// Clashes reports whether two schedules overlap on the same day in at least
// one shared teaching week.
func (s Schedule) Clashes(other Schedule) bool {
	if s.Day != other.Day || s.Begin >= other.End || other.Begin >= s.End {
		return false
	}
	for _, w := range s.Weeks {
		if slices.Contains(other.Weeks, w) {
			return true
		}
	}
	return false
}

// FormatWeeks renders weeks as "1;2;3".
func FormatWeeks(weeks []int) string {
	parts := make([]string, len(weeks))
	for i, w := range weeks {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ";")
}

// ParseWeeks reads the format written by FormatWeeks.
func ParseWeeks(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ";")
	weeks := make([]int, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid week %q", p)
		}
		weeks = append(weeks, w)
	}
	return weeks, nil
}
