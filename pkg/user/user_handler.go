package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/klokku/sharecal/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Id       int    `json:"id"`
	Uid      string `json:"uid" validate:"required,max=255"`
	Username string `json:"username" validate:"required,max=255"`
}

type Handler struct {
	userService Service
	validate    *validator.Validate
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateUser godoc
// @Summary Register a user
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 201 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/user [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating user")

	var dto UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user data", err.Error())
		return
	}

	createdUser, err := h.userService.CreateUser(r.Context(), User{Uid: dto.Uid, Username: dto.Username})
	if err != nil {
		if errors.Is(err, ErrUserDataInvalid) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid user data", err.Error())
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to create user", "")
		return
	}
	log.Tracef("Created user: %+v", createdUser)

	rest.WriteJSON(w, http.StatusCreated, userToDTO(createdUser))
}

// CurrentUser godoc
// @Summary Get current user
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 401 {object} rest.ErrorResponse "Not authenticated"
// @Router /api/user/current [get]
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Trace("Getting current user")

	currentUser, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrNoUser):
			rest.WriteError(w, http.StatusUnauthorized, "Not authenticated", "")
		case errors.Is(err, ErrUserNotFound):
			rest.WriteError(w, http.StatusNotFound, "User not found", "")
		default:
			rest.WriteError(w, http.StatusInternalServerError, "Failed to get user", "")
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, userToDTO(currentUser))
}

// GetAvailableUsers godoc
// @Summary List users events can be shared with
// @Tags User
// @Produce json
// @Success 200 {array} UserDTO
// @Router /api/user [get]
func (h *Handler) GetAvailableUsers(w http.ResponseWriter, r *http.Request) {
	log.Trace("Getting available users")

	users, err := h.userService.GetAllUsers(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Failed to list users", "")
		return
	}

	usersDTO := make([]UserDTO, 0, len(users))
	for _, u := range users {
		usersDTO = append(usersDTO, userToDTO(u))
	}
	rest.WriteJSON(w, http.StatusOK, usersDTO)
}

func userToDTO(user User) UserDTO {
	return UserDTO{
		Id:       user.Id,
		Uid:      user.Uid,
		Username: user.Username,
	}
}
