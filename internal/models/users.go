package models

// UserCredential is one record from the users list. AppPassword may be
// empty; the runner records that as a per-user failure rather than
// skipping the user.
type UserCredential struct {
	Username    string
	AppPassword string
}
