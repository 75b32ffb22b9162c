package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Descriptor is a parsed plugin string of the form
//
//	name:key=value,key=[nested:descriptor],flag
//
// Bracketed values may nest and are returned without the outer brackets.
type Descriptor struct {
	Name    string
	Options map[string]string
}

func ParseDescriptor(s string) (d Descriptor, err error) {
	var (
		name, rest, hasOpts = strings.Cut(strings.TrimSpace(s), ":")
	)
	d = Descriptor{
		Name:    strings.TrimSpace(name),
		Options: make(map[string]string),
	}
	if len(d.Name) == 0 {
		err = fmt.Errorf("empty descriptor name in %q", s)
		return
	}
	if !hasOpts {
		return
	}
	var fields []string
	if fields, err = splitTopLevel(rest); err != nil {
		err = fmt.Errorf("descriptor %q: %w", s, err)
		return
	}
	for _, f := range fields {
		key, val, found := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if len(key) == 0 {
			continue
		}
		if !found {
			val = "1"
		}
		val = strings.TrimSpace(val)
		if strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]") {
			val = val[1 : len(val)-1]
		}
		if _, dup := d.Options[key]; dup {
			err = fmt.Errorf("descriptor %q: option %q given twice", s, key)
			return
		}
		d.Options[key] = val
	}
	return
}

func splitTopLevel(s string) (fields []string, err error) {
	var (
		depth, start int
	)
	for i, c := range s {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']' at %d", i)
			}
		case ',':
			if depth == 0 {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '['")
	}
	fields = append(fields, s[start:])
	return
}

func (d Descriptor) Has(key string) bool {
	_, ok := d.Options[key]
	return ok
}

func (d Descriptor) String(key, def string) string {
	if v, ok := d.Options[key]; ok {
		return v
	}
	return def
}

func (d Descriptor) Float(key string, def float64) (float64, error) {
	v, ok := d.Options[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("option %s of %s: %w", key, d.Name, err)
	}
	return f, nil
}

func (d Descriptor) Int(key string, def int) (int, error) {
	v, ok := d.Options[key]
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("option %s of %s: %w", key, d.Name, err)
	}
	return i, nil
}

func (d Descriptor) Bool(key string, def bool) (bool, error) {
	v, ok := d.Options[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("option %s of %s: %w", key, d.Name, err)
	}
	return b, nil
}

// Unknown lists option keys that are not in the accepted set, sorted
func (d Descriptor) Unknown(accepted ...string) (unknown []string) {
	for key := range d.Options {
		known := false
		for _, a := range accepted {
			if a == key {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return
}
