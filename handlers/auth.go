package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/middleware"
	"github.com/loiht2/ai-vision-portal/models"
	"github.com/loiht2/ai-vision-portal/repository"
	"github.com/loiht2/ai-vision-portal/security"
)

// maxUsername matches the width of the users.username column
const maxUsername = 50

// LoginPage handles GET /login
func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", page(c, "login", nil))
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var form models.CredentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", page(c, "login", gin.H{"error": "Username and password are required"}))
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), strings.TrimSpace(form.Username))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Failed to look up user %s: %v", form.Username, err)
	}
	if user == nil || !user.IsActive || !security.VerifyPassword(form.Password, user.HashedPassword) {
		c.HTML(http.StatusUnauthorized, "login.html", page(c, "login", gin.H{"error": "Invalid credentials"}))
		return
	}

	h.startSession(c, user, "login.html")
}

// Logout handles GET /logout
func (h *Handler) Logout(c *gin.Context) {
	middleware.ClearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// SignupPage handles GET /signup
func (h *Handler) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", page(c, "signup", nil))
}

// Signup handles POST /auth/signup and logs the new user in
func (h *Handler) Signup(c *gin.Context) {
	var form models.CredentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "signup.html", page(c, "signup", gin.H{"error": "Username and password are required"}))
		return
	}
	username := strings.TrimSpace(form.Username)
	if username == "" || len([]rune(username)) > maxUsername {
		c.HTML(http.StatusBadRequest, "signup.html", page(c, "signup", gin.H{"error": "Username must be between 1 and 50 characters"}))
		return
	}

	ctx := c.Request.Context()
	existing, err := h.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Failed to look up user %s: %v", username, err)
		c.HTML(http.StatusInternalServerError, "signup.html", page(c, "signup", gin.H{"error": "Could not create account, please try again"}))
		return
	}
	if existing != nil {
		c.HTML(http.StatusConflict, "signup.html", page(c, "signup", gin.H{"error": "Username already exists"}))
		return
	}

	hashed, err := security.HashPassword(form.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		c.HTML(http.StatusInternalServerError, "signup.html", page(c, "signup", gin.H{"error": "Could not create account, please try again"}))
		return
	}
	user := &config.User{Username: username, HashedPassword: hashed, IsActive: true}
	if err := h.store.CreateUser(ctx, user); err != nil {
		log.Printf("%v", &models.PersistenceError{Op: "create user " + username, Err: err})
		c.HTML(http.StatusInternalServerError, "signup.html", page(c, "signup", gin.H{"error": "Could not create account, please try again"}))
		return
	}

	log.Printf("User %s signed up", username)
	h.startSession(c, user, "signup.html")
}

func (h *Handler) startSession(c *gin.Context, user *config.User, tmpl string) {
	if err := middleware.SetSession(c, h.issuer, security.Identity{UserID: user.ID, Username: user.Username}); err != nil {
		log.Printf("Failed to issue session for %s: %v", user.Username, err)
		c.HTML(http.StatusInternalServerError, tmpl, page(c, "", gin.H{"error": "Could not start a session, please try again"}))
		return
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}
