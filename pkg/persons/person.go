// Package persons models SlashID person records and fetches them from the API.
package persons

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Attributes holds a person's custom attributes indexed by bucket.
type Attributes map[Bucket]map[string]any

// Record is what the migration and API layers read from a person.
type Record interface {
	ID() string
	IsActive() bool
	Region() string
	EmailAddresses() []string
	PhoneNumbers() []string
	Groups() []string
	AllAttributes() Attributes
	LegacyPasswordHash() string
}

// Person is a mutable person record. The zero value is an inactive person
// with no data; use NewPerson for an active one.
type Person struct {
	id             string
	active         bool
	region         string
	emailAddresses []string
	phoneNumbers   []string
	groups         []string
	attributes     Attributes
	passwordHash   string
}

var _ Record = (*Person)(nil)

func NewPerson(id string, active bool, region string) *Person {
	return &Person{id: id, active: active, region: region, attributes: Attributes{}}
}

const (
	handleEmail = "email_address"
	handlePhone = "phone_number"
)

type handle struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Values is the person shape returned by the API.
type Values struct {
	PersonID   string     `json:"person_id"`
	Active     bool       `json:"active"`
	Region     string     `json:"region"`
	Roles      []string   `json:"roles"`
	Attributes Attributes `json:"attributes"`
	Handles    []handle   `json:"handles"`
	Groups     []string   `json:"groups"`
}

// FromValues builds a Person from the API shape. Handles other than email
// addresses and phone numbers are ignored.
func FromValues(v Values) *Person {
	p := NewPerson(v.PersonID, v.Active, v.Region)
	p.SetGroups(v.Groups)
	if v.Attributes != nil {
		p.attributes = v.Attributes
	}
	for _, h := range v.Handles {
		switch h.Type {
		case handleEmail:
			p.AddEmailAddress(h.Value)
		case handlePhone:
			p.AddPhoneNumber(h.Value)
		}
	}
	return p
}

// Decode parses an API person object. Unknown buckets fail.
func Decode(raw []byte) (*Person, error) {
	var v Values
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding person: %w", err)
	}
	return FromValues(v), nil
}

func (p *Person) ID() string       { return p.id }
func (p *Person) IsActive() bool   { return p.active }
func (p *Person) SetActive(a bool) { p.active = a }
func (p *Person) Region() string   { return p.region }

// SetRegion sets the region, e.g. us-iowa, europe-belgium, asia-japan,
// europe-england or australia-sydney.
func (p *Person) SetRegion(r string) { p.region = r }

func (p *Person) EmailAddresses() []string { return slices.Clone(p.emailAddresses) }

// AddEmailAddress appends addr unless it is already present.
func (p *Person) AddEmailAddress(addr string) {
	p.emailAddresses = appendUnique(p.emailAddresses, addr)
}

func (p *Person) SetEmailAddresses(addrs []string) { p.emailAddresses = dedupe(addrs) }

func (p *Person) PhoneNumbers() []string { return slices.Clone(p.phoneNumbers) }

func (p *Person) AddPhoneNumber(n string) {
	p.phoneNumbers = appendUnique(p.phoneNumbers, n)
}

func (p *Person) SetPhoneNumbers(ns []string) { p.phoneNumbers = dedupe(ns) }

// Groups returns the groups in the order they were set. Duplicates are kept.
func (p *Person) Groups() []string { return slices.Clone(p.groups) }

func (p *Person) SetGroups(groups []string) { p.groups = slices.Clone(groups) }

func (p *Person) HasGroup(group string) bool { return slices.Contains(p.groups, group) }

// HasAnyGroup reports whether the person is in at least one of groups.
func (p *Person) HasAnyGroup(groups []string) bool {
	for _, g := range groups {
		if p.HasGroup(g) {
			return true
		}
	}
	return false
}

// HasAllGroups reports whether the person is in every one of groups. It is
// true for an empty list.
func (p *Person) HasAllGroups(groups []string) bool {
	for _, g := range groups {
		if !p.HasGroup(g) {
			return false
		}
	}
	return true
}

func (p *Person) LegacyPasswordHash() string { return p.passwordHash }

// SetLegacyPasswordHash sets a password hash to carry over on import.
func (p *Person) SetLegacyPasswordHash(h string) { p.passwordHash = h }

// AllAttributes returns the attribute map. Callers must not modify it.
func (p *Person) AllAttributes() Attributes { return p.attributes }

// SetAllAttributes replaces every attribute. It fails without changing
// anything if a bucket is invalid.
func (p *Person) SetAllAttributes(attrs Attributes) error {
	for b := range attrs {
		if !b.Valid() {
			return &InvalidBucketError{Name: string(b)}
		}
	}
	if attrs == nil {
		attrs = Attributes{}
	}
	p.attributes = attrs
	return nil
}

// BucketAttributes returns the attributes in bucket, or nil if it is empty.
func (p *Person) BucketAttributes(bucket Bucket) (map[string]any, error) {
	if !bucket.Valid() {
		return nil, &InvalidBucketError{Name: string(bucket)}
	}
	return p.attributes[bucket], nil
}

func (p *Person) SetBucketAttributes(bucket Bucket, attrs map[string]any) error {
	if !bucket.Valid() {
		return &InvalidBucketError{Name: string(bucket)}
	}
	p.ensure()
	p.attributes[bucket] = attrs
	return nil
}

func (p *Person) DeleteBucketAttributes(bucket Bucket) error {
	if !bucket.Valid() {
		return &InvalidBucketError{Name: string(bucket)}
	}
	delete(p.attributes, bucket)
	return nil
}

// Attribute returns one attribute value and whether it is set.
func (p *Person) Attribute(bucket Bucket, name string) (any, bool, error) {
	if !bucket.Valid() {
		return nil, false, &InvalidBucketError{Name: string(bucket)}
	}
	v, ok := p.attributes[bucket][name]
	return v, ok, nil
}

func (p *Person) SetAttribute(bucket Bucket, name string, value any) error {
	if !bucket.Valid() {
		return &InvalidBucketError{Name: string(bucket)}
	}
	p.ensure()
	if p.attributes[bucket] == nil {
		p.attributes[bucket] = map[string]any{}
	}
	p.attributes[bucket][name] = value
	return nil
}

func (p *Person) DeleteAttribute(bucket Bucket, name string) error {
	if !bucket.Valid() {
		return &InvalidBucketError{Name: string(bucket)}
	}
	delete(p.attributes[bucket], name)
	return nil
}

func (p *Person) ensure() {
	if p.attributes == nil {
		p.attributes = Attributes{}
	}
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = appendUnique(out, v)
	}
	return out
}
