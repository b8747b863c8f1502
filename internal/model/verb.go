package model

import (
	"errors"
	"fmt"
)

// ErrUnknownVerb is returned by ParseVerb for strings outside the Verb set.
var ErrUnknownVerb = errors.New("unknown verb")

// Verb 行为类型（封闭枚举）
type Verb string

const (
	VerbUnknown        Verb = ""
	VerbCreateActivity Verb = "create_activity"
	VerbJoin           Verb = "join"
	VerbRemoveRsvp     Verb = "remove_rsvp"
	VerbPhotoComment   Verb = "photo_comment"
)

var verbs = map[string]Verb{
	string(VerbCreateActivity): VerbCreateActivity,
	string(VerbJoin):           VerbJoin,
	string(VerbRemoveRsvp):     VerbRemoveRsvp,
	string(VerbPhotoComment):   VerbPhotoComment,
}

// ParseVerb maps s onto the Verb set.
func ParseVerb(s string) (Verb, error) {
	v, ok := verbs[s]
	if !ok {
		return VerbUnknown, fmt.Errorf("%w %q", ErrUnknownVerb, s)
	}
	return v, nil
}

func (v Verb) String() string { return string(v) }
