package models

// Student extends a User of the STUDENT domain with academic details. It
// holds the user key rather than embedding the user, so that the user and
// student tables stay independent.
type Student struct {
	Username    string `json:"username" validate:"required"`
	MatricNo    string `json:"matric_no" validate:"required"`
	Gender      string `json:"gender" validate:"omitempty,oneof=M F"`
	FullName    string `json:"full_name" validate:"required"`
	Nationality string `json:"nationality"`
	Year        int    `json:"year" validate:"gte=1,lte=6"`
	Programme   string `json:"programme"`
}

// Clone returns an independent copy.
func (s *Student) Clone() Student {
	return *s
}

// StudentDetail joins a student with the user fields needed for display.
type StudentDetail struct {
	Student
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	RegisteredAU float64 `json:"registered_au"`
}
