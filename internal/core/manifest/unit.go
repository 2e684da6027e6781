package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Unit manifest keys.
const (
	UnitKeyID           = "id"
	UnitKeyName         = "name"
	UnitKeyFriendlyName = "friendlyName"
	UnitKeyDescription  = "description"
	UnitKeyVersion      = "version"
)

// Unit is a unit (task) manifest.
type Unit struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	FriendlyName string      `json:"friendlyName,omitempty"`
	Description  string      `json:"description,omitempty"`
	Version      UnitVersion `json:"version"`

	raw map[string]interface{}
}

// UnitVersion is stored as three independent integers.
type UnitVersion struct {
	Major int `json:"Major"`
	Minor int `json:"Minor"`
	Patch int `json:"Patch"`
}

func (v UnitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Fields returns the version in the shape stored in a unit manifest.
func (v UnitVersion) Fields() map[string]interface{} {
	return map[string]interface{}{
		"Major": v.Major,
		"Minor": v.Minor,
		"Patch": v.Patch,
	}
}

// UnmarshalJSON accepts numbers or numeric strings for each component.
func (v *UnitVersion) UnmarshalJSON(data []byte) error {
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var out UnitVersion
	for key, value := range parts {
		var target *int
		switch strings.ToLower(key) {
		case "major":
			target = &out.Major
		case "minor":
			target = &out.Minor
		case "patch":
			target = &out.Patch
		default:
			continue
		}
		n, err := flexInt(value)
		if err != nil {
			return fmt.Errorf("version.%s: %w", key, err)
		}
		*target = n
	}
	*v = out
	return nil
}

func flexInt(data json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, err
		}
		return i, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

// ParseUnit decodes a unit manifest. name identifies the document in errors.
func ParseUnit(name string, data []byte) (*Unit, error) {
	raw, err := decodeObject(data)
	if err != nil {
		return nil, NewError(KindManifestParse, name, err)
	}
	u := &Unit{raw: raw}
	if err := u.sync(); err != nil {
		return nil, NewError(KindManifestParse, name, err)
	}
	return u, nil
}

func (u *Unit) sync() error {
	var view Unit
	if err := project(u.raw, &view); err != nil {
		return err
	}
	view.raw = u.raw
	*u = view
	return nil
}

// Set overrides a unit manifest key.
func (u *Unit) Set(key string, value interface{}) error {
	v, err := normalizeValue(value)
	if err != nil {
		return NewError(KindManifestParse, key, err)
	}
	if u.raw == nil {
		u.raw = make(map[string]interface{})
	}
	u.raw[key] = v
	if err := u.sync(); err != nil {
		return NewError(KindManifestParse, key, err)
	}
	return nil
}

// Apply sets every key of fields, in key order.
func (u *Unit) Apply(fields map[string]interface{}) error {
	for _, key := range sortedKeys(fields) {
		if err := u.Set(key, fields[key]); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders the unit manifest as indented JSON with a trailing newline.
func (u *Unit) Marshal() ([]byte, error) {
	return encodeDocument(u.raw)
}

// Clone returns a deep copy.
func (u *Unit) Clone() *Unit {
	data, err := u.Marshal()
	if err != nil {
		return &Unit{raw: map[string]interface{}{}}
	}
	c, err := ParseUnit("clone", data)
	if err != nil {
		return &Unit{raw: map[string]interface{}{}}
	}
	return c
}
