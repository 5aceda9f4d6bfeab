package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

// CreateStudentRequest represents payload for enrolling a student account.
type CreateStudentRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,min=6"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	MatricNo    string `json:"matric_no" validate:"required"`
	Gender      string `json:"gender" validate:"omitempty,oneof=M F"`
	FullName    string `json:"full_name" validate:"required"`
	Nationality string `json:"nationality"`
	Year        int    `json:"year" validate:"gte=1,lte=6"`
	Programme   string `json:"programme"`
}

// CreateStaffRequest represents payload for creating a staff account.
type CreateStaffRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
}

// UserServiceConfig tunes password hashing.
type UserServiceConfig struct {
	BcryptCost int
}

// UserService handles user and student management workflows.
type UserService struct {
	graph     *graph.Graph
	validator *validator.Validate
	logger    *zap.Logger
	cost      int
}

// NewUserService creates an instance of UserService.
func NewUserService(g *graph.Graph, validate *validator.Validate, logger *zap.Logger, cfg UserServiceConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{graph: g, validator: validate, logger: logger, cost: cost}
}

// CreateStudent creates the user account and its student record together.
func (s *UserService) CreateStudent(req CreateStudentRequest) (*models.StudentDetail, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Gender = strings.ToUpper(strings.TrimSpace(req.Gender))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if s.graph.Users.Contains(req.Username) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "username %s is taken", req.Username)
	}
	for _, existing := range s.graph.Students.Items() {
		if strings.EqualFold(existing.MatricNo, req.MatricNo) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "matric number %s belongs to %s", req.MatricNo, existing.Username)
		}
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: req.Username, PasswordHash: hash, Domain: models.DomainStudent, Email: req.Email, Phone: req.Phone}
	if err := s.graph.AddUser(user); err != nil {
		return nil, err
	}
	student := &models.Student{
		Username:    req.Username,
		MatricNo:    req.MatricNo,
		Gender:      req.Gender,
		FullName:    req.FullName,
		Nationality: req.Nationality,
		Year:        req.Year,
		Programme:   req.Programme,
	}
	if err := s.graph.AddStudent(student); err != nil {
		s.graph.Users.Remove(req.Username)
		return nil, err
	}

	s.logger.Info("student created", zap.String("username", req.Username))
	return s.detail(student), nil
}

// CreateStaff creates a staff account.
func (s *UserService) CreateStaff(req CreateStaffRequest) (*models.UserInfo, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if s.graph.Users.Contains(req.Username) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "username %s is taken", req.Username)
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: req.Username, PasswordHash: hash, Domain: models.DomainStaff, Email: req.Email, Phone: req.Phone}
	if err := s.graph.AddUser(user); err != nil {
		return nil, err
	}
	s.logger.Info("staff created", zap.String("username", req.Username))
	return &models.UserInfo{Username: user.Username, Domain: user.Domain, Email: user.Email}, nil
}

// FindUser returns a copy of the user stored under username.
func (s *UserService) FindUser(username string) (models.User, bool) {
	user, ok := s.graph.Users.Get(username)
	if !ok {
		return models.User{}, false
	}
	return user.Clone(), true
}

// GetStudent returns a student with contact details and registered AU.
func (s *UserService) GetStudent(username string) (*models.StudentDetail, error) {
	student, ok := s.graph.Students.Get(username)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", username)
	}
	return s.detail(student), nil
}

// ListStudents returns every student in username order.
func (s *UserService) ListStudents() []models.StudentDetail {
	students := s.graph.Students.Items()
	out := make([]models.StudentDetail, 0, len(students))
	for _, student := range students {
		out = append(out, *s.detail(student))
	}
	return out
}

// Rename changes a username; the student record and registrations follow.
func (s *UserService) Rename(oldName, newName string) error {
	if err := s.graph.RenameUser(oldName, newName); err != nil {
		return err
	}
	s.logger.Info("user renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// Delete removes a user together with its student record and registrations.
func (s *UserService) Delete(username string) error {
	if err := s.graph.RemoveUser(username); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("username", username))
	return nil
}

func (s *UserService) detail(student *models.Student) *models.StudentDetail {
	out := &models.StudentDetail{Student: student.Clone(), RegisteredAU: s.graph.RegisteredAU(student.Username)}
	if user, ok := s.graph.Users.Get(student.Username); ok {
		out.Email = user.Email
		out.Phone = user.Phone
	}
	return out
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return string(hash), nil
}
