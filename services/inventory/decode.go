package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decode parses a check-in body. Syntax errors yield KindMalformedSyntax;
// missing, null or mistyped required fields yield KindMalformedShape.
// Field names match exactly, so a case variant of a required key does not
// satisfy it. Unknown top-level fields are ignored and unknown drive fields
// are kept in the raw drive snapshot.
func Decode(body []byte) (*CheckIn, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewError(KindMalformedSyntax, errors.New("empty body"))
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, classifyDecodeError(err)
	}

	in := &CheckIn{}
	var missing []Violation

	required := []struct {
		key string
		dst *string
	}{
		{"hostname", &in.Hostname},
		{"ip_address", &in.IPAddress},
		{"laptop_serial", &in.LaptopSerial},
	}
	for _, f := range required {
		ok, err := lookup(top, f.key, f.key, f.dst)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, Violation{Field: f.key, Rule: "required"})
		}
	}

	var user string
	ok, err := lookup(top, "logged_in_user", "logged_in_user", &user)
	if err != nil {
		return nil, err
	}
	if ok {
		in.LoggedInUser = &user
	}

	var drives []json.RawMessage
	ok, err = lookup(top, "drives", "drives", &drives)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, Violation{Field: "drives", Rule: "required"})
	} else {
		in.Drives = make([]Drive, 0, len(drives))
		for i, raw := range drives {
			d, dmissing, err := decodeDrive(fmt.Sprintf("drives[%d]", i), raw)
			if err != nil {
				return nil, err
			}
			if len(dmissing) > 0 {
				missing = append(missing, dmissing...)
				continue
			}
			in.Drives = append(in.Drives, d)
		}
	}

	ok, err = lookup(top, "timestamp_utc", "timestamp_utc", &in.TimestampUTC)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, Violation{Field: "timestamp_utc", Rule: "required"})
	}

	if len(missing) > 0 {
		return nil, &Error{
			Kind:       KindMalformedShape,
			Err:        errors.New("missing required fields"),
			Violations: missing,
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, top["drives"]); err != nil {
		return nil, NewError(KindMalformedSyntax, err)
	}
	in.rawDrives = json.RawMessage(buf.Bytes())

	return in, nil
}

func decodeDrive(path string, raw json.RawMessage) (Drive, []Violation, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Drive{}, nil, fieldError(path, err)
	}

	var d Drive
	var missing []Violation
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"model", &d.Model},
		{"device_id", &d.DeviceID},
	} {
		ok, err := lookup(obj, path+"."+f.key, f.key, f.dst)
		if err != nil {
			return Drive{}, nil, err
		}
		if !ok {
			missing = append(missing, Violation{Field: path + "." + f.key, Rule: "required"})
		}
	}

	var serial string
	ok, err := lookup(obj, path+".serial_number", "serial_number", &serial)
	if err != nil {
		return Drive{}, nil, err
	}
	if ok {
		d.SerialNumber = &serial
	}
	return d, missing, nil
}

// lookup decodes the value stored under exactly key into dst. It reports
// false when the key is absent or null.
func lookup(obj map[string]json.RawMessage, path, key string, dst any) (bool, error) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fieldError(path, err)
	}
	return true, nil
}

// fieldError classifies an error decoding the value at path.
func fieldError(path string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &Error{
			Kind:       KindMalformedShape,
			Err:        fmt.Errorf("%s: %w", path, err),
			Violations: []Violation{{Field: path, Rule: "type", Param: typeErr.Value}},
		}
	}
	return classifyDecodeError(fmt.Errorf("%s: %w", path, err))
}

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return NewError(KindMalformedSyntax, err)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "$"
		}
		return &Error{
			Kind:       KindMalformedShape,
			Err:        err,
			Violations: []Violation{{Field: field, Rule: "type", Param: typeErr.Value}},
		}
	case strings.Contains(err.Error(), "unexpected end of JSON input"):
		return NewError(KindMalformedSyntax, err)
	default:
		return NewError(KindMalformedShape, err)
	}
}
