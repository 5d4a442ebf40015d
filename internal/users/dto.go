package users

// CreateUserRequest carries the fields an administrator supplies for a new
// account. The credential is generated server-side, never submitted.
type CreateUserRequest struct {
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email,max=255"`
}

// UpdateUserRequest carries the editable fields. Only name and email ever
// change after creation.
type UpdateUserRequest struct {
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email,max=255"`
}

// ListUsersRequest carries pagination parameters for the listing.
type ListUsersRequest struct {
	Page    int `validate:"gte=0"`
	PerPage int `validate:"gte=0,lte=100"`
}
