package accounts

// userIdentity adapts a User record to the Identity interface
type userIdentity struct {
	user *User
}

// NewIdentity wraps a user record so it can be passed to the token service
func NewIdentity(user *User) Identity {
	return userIdentity{user: user}
}

func (i userIdentity) ID() string {
	if i.user == nil {
		return ""
	}
	return i.user.ID.String()
}

func (i userIdentity) Email() string {
	if i.user == nil {
		return ""
	}
	return i.user.Email
}

func (i userIdentity) Name() string {
	if i.user == nil {
		return ""
	}
	return i.user.Name
}

func (i userIdentity) Role() string {
	if i.user == nil {
		return ""
	}
	return string(i.user.Role)
}
