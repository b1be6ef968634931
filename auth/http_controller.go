package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")

	app.Get(controller.Routes.Forbidden, controller.ForbiddenShow).
		SetName("forbidden.get")

	return controller
}

type AuthControllerRoutes struct {
	Login     string
	Logout    string
	Forbidden string
}

type AuthControllerViews struct {
	Login     string
	Forbidden string
}

type AuthController struct {
	Logger Logger
	Routes *AuthControllerRoutes
	Views  *AuthControllerViews
	Auther *RouteAuthenticator
	// ExternalLogin is where visitors sign in when the backend has no
	// password flow.
	ExternalLogin string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthenticatorController(auther *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithExternalLogin(url string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ExternalLogin = url
		return c
	}
}

func WithControllerRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes.Login != "" {
			c.Routes.Login = routes.Login
		}
		if routes.Logout != "" {
			c.Routes.Logout = routes.Logout
		}
		if routes.Forbidden != "" {
			c.Routes.Forbidden = routes.Forbidden
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:     "/login",
			Logout:    "/logout",
			Forbidden: "/forbidden",
		},
		Views: &AuthControllerViews{
			Login:     "login",
			Forbidden: "errors/403",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	if !a.Auther.CanLogin() && a.ExternalLogin != "" {
		return ctx.Redirect(a.ExternalLogin, http.StatusFound)
	}

	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

func (r LoginRequest) GetIdentifier() string {
	return strings.TrimSpace(r.Identifier)
}

func (r LoginRequest) GetPassword() string {
	return r.Password
}

func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(3, 200)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign in parse payload", "error", err)
		return ctx.Status(http.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Status(http.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		message := "Authentication Error"
		status := http.StatusUnauthorized

		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category != errors.CategoryInternal {
			message = richErr.Message
			if richErr.Code > 0 {
				status = richErr.Code
			}
		}

		return ctx.Status(status).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"authentication": message},
			"record": payload,
		})
	}

	redirect := a.Auther.GetRedirect(ctx)
	a.Logger.Debug("signed in, redirecting", "to", redirect)

	return ctx.Redirect(redirect, http.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect(a.Routes.Login, http.StatusTemporaryRedirect)
}

func (a *AuthController) ForbiddenShow(ctx router.Context) error {
	return ctx.Status(http.StatusForbidden).Render(a.Views.Forbidden, router.ViewContext{
		"error": ErrForbidden,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}
