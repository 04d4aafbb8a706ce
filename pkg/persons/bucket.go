package persons

import "fmt"

// Bucket namespaces a person's custom attributes. The set is closed: only the
// constants below are valid.
type Bucket string

const (
	OrganizationNoAccess  Bucket = "end_user_no_access"
	OrganizationReadOnly  Bucket = "end_user_read_only"
	OrganizationReadWrite Bucket = "end_user_read_write"
	PersonPoolNoAccess    Bucket = "person_pool-end_user_no_access"
	PersonPoolReadOnly    Bucket = "person_pool-end_user_read_only"
	PersonPoolReadWrite   Bucket = "person_pool-end_user_read_write"
)

// Buckets lists every valid bucket.
var Buckets = []Bucket{
	OrganizationNoAccess,
	OrganizationReadOnly,
	OrganizationReadWrite,
	PersonPoolNoAccess,
	PersonPoolReadOnly,
	PersonPoolReadWrite,
}

// InvalidBucketError reports a name outside the bucket set.
type InvalidBucketError struct {
	Name string
}

func (e *InvalidBucketError) Error() string {
	return fmt.Sprintf("invalid bucket %q: valid buckets are %v", e.Name, Buckets)
}

func (b Bucket) Valid() bool {
	switch b {
	case OrganizationNoAccess, OrganizationReadOnly, OrganizationReadWrite,
		PersonPoolNoAccess, PersonPoolReadOnly, PersonPoolReadWrite:
		return true
	}
	return false
}

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", &InvalidBucketError{Name: s}
	}
	return b, nil
}

// UnmarshalText makes invalid bucket names fail JSON decoding, including when
// a Bucket is used as a map key.
func (b *Bucket) UnmarshalText(text []byte) error {
	v, err := ParseBucket(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b Bucket) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, &InvalidBucketError{Name: string(b)}
	}
	return []byte(b), nil
}
