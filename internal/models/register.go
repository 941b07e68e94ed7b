package models

import "strings"

// RegistrationProfile is what the user fills in on the sign up form.
type RegistrationProfile struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirmPassword"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	Role            string `json:"role" form:"role"`
	Location        string `json:"location,omitempty" form:"location"`
}

// RegisterRequest is the payload accepted by the backend. The password
// confirmation never leaves the agent.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Location  string `json:"location,omitempty"`
}

func (p RegistrationProfile) ToRequest() RegisterRequest {
	role := ParseRole(p.Role)
	if !role.IsKnown() {
		role = RoleStudent
	}
	return RegisterRequest{
		Email:     strings.TrimSpace(p.Email),
		Password:  p.Password,
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Role:      string(role),
		Location:  strings.TrimSpace(p.Location),
	}
}
